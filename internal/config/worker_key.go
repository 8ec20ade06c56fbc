package config

type WorkerKeyStruct struct {
	PersistAlertsQueue string
	AlertExchange      string
	AlertRoutingKey    string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAlertsQueue: "persist_alerts_queue",
	AlertExchange:      "proctor.events",
	AlertRoutingKey:    "proctor.alert",
}
