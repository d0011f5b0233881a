package config

type WorkerKeyStruct struct {
	PersistRMIBProgressQueue string
	PersistRMIBResultsQueue  string
}

// WorkerKey names the Redis queues drained by the backend's persistence workers.
var WorkerKey = &WorkerKeyStruct{
	PersistRMIBProgressQueue: "persist_rmib_progress_queue",
	PersistRMIBResultsQueue:  "persist_rmib_results_queue",
}
