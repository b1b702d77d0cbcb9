package config

type WorkerKeyStruct struct {
	PersistAnswersQueue  string
	PersistActivityQueue string
	PersistStatsQueue    string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue:  "persist_answers_queue",
	PersistActivityQueue: "persist_activity_queue",
	PersistStatsQueue:    "persist_stats_queue",
}
