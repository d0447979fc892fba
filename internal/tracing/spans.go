package tracing

// Span names.
const (
	SpanPass         = "idosync.pass"
	SpanOwner        = "idosync.owner"
	SpanRecordUpdate = "idosync.record.update"
)

// Span attribute keys.
const (
	AttrRunID    = "idosync.run_id"
	AttrDryRun   = "idosync.dry_run"
	AttrOwner    = "idosync.owner"
	AttrRecord   = "idosync.record.key"
	AttrAction   = "idosync.record.action"
	AttrIDOS     = "idosync.record.idos"
	AttrPrevious = "idosync.record.previous"
	AttrRecords  = "idosync.owner.records"
	AttrUpdated  = "idosync.updated"
	AttrFailed   = "idosync.failed"
)

// Event names.
const (
	EventOwnerSkipped  = "owner.skipped"
	EventRecordSkipped = "record.skipped"
)
