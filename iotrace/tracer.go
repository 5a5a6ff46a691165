package iotrace

// OperationRow is one completed channel-I/O operation.
type OperationRow struct {
	Seq           int64
	DeviceAddr    int
	Outcome       string
	UnitStatus    int
	ChannelStatus int
	Residual      int
}

const operationTable = "io_operations"

// A Tracer turns channel-I/O completions into trace rows. A nil Tracer
// is valid and records nothing.
type Tracer struct {
	rec Recorder
	seq int64
}

// NewTracer creates a Tracer over a Recorder and creates its table.
func NewTracer(rec Recorder) *Tracer {
	t := &Tracer{rec: rec}
	rec.CreateTable(operationTable, OperationRow{})

	return t
}

// Operation records one completed operation.
func (t *Tracer) Operation(
	devAddr uint16,
	outcome string,
	unit, channel uint8,
	residual uint16,
) {
	if t == nil {
		return
	}

	t.seq++
	t.rec.InsertData(operationTable, OperationRow{
		Seq:           t.seq,
		DeviceAddr:    int(devAddr),
		Outcome:       outcome,
		UnitStatus:    int(unit),
		ChannelStatus: int(channel),
		Residual:      int(residual),
	})
}
