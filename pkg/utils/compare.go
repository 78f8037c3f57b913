package utils

import (
	"github.com/nats-io/nats.go"
)

// StreamConfigEqual compares the stream properties the pipeline manages.
// Server-populated fields are ignored so an unchanged stream is not updated
// on every boot.
func StreamConfigEqual(a, b nats.StreamConfig) bool {
	return a.Name == b.Name &&
		a.Retention == b.Retention &&
		a.MaxMsgs == b.MaxMsgs &&
		a.MaxAge == b.MaxAge &&
		a.Storage == b.Storage &&
		stringSlicesEqual(a.Subjects, b.Subjects)
}

// ConsumerConfigEqual compares the lane consumer properties the pipeline
// manages. A mismatch triggers a delete/re-add of the durable.
func ConsumerConfigEqual(a, b nats.ConsumerConfig) bool {
	return a.Durable == b.Durable &&
		a.AckPolicy == b.AckPolicy &&
		a.MaxDeliver == b.MaxDeliver &&
		a.AckWait == b.AckWait &&
		stringSlicesEqual(a.FilterSubjects, b.FilterSubjects)
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
