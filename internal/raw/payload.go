package raw

// SystemInfo is the combined host snapshot: static CPU facts, memory totals,
// the process list and a handful of optional extras.
type SystemInfo struct {
	CPU         Record
	Memory      Record
	Processes   []Record
	Graphics    Record
	Battery     Record
	Temperature Record
	Time        Record
	FsSize      []Record
}

// CPULoad carries the top-level load fields plus one record per core.
type CPULoad struct {
	Fields Record
	Cores  []Record
}

// IOStats groups network, filesystem and disk counters. Disks is either a
// single Record or a []Record depending on the source.
type IOStats struct {
	Network           []Record
	NetworkInterfaces []Record
	FsStats           Record
	Disks             any
	FsSize            []Record
}
