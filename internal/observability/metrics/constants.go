// Package metrics provides Prometheus collectors for imageclassifier components.
package metrics

// Operation names used as label values across collectors.
const (
	OpRecognize    = "recognize"
	OpPreprocess   = "preprocess"
	OpInvoke       = "invoke"
	OpPostprocess  = "postprocess"
	OpModelLoad    = "model_load"
	OpDecode       = "decode"
	OpQueueWait    = "queue_wait"
	OpHistorySave  = "history_save"
	OpHistoryQuery = "history_query"
	OpPublish      = "publish"
)

// Status label values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)
