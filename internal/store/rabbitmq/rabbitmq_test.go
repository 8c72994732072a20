package rabbitmq

import "testing"

func TestQueuesFor(t *testing.T) {
	q := QueuesFor("audit_jobs")
	if q.Main != "audit_jobs" || q.Retry != "audit_jobs.retry" || q.DLQ != "audit_jobs.dlq" {
		t.Fatalf("unexpected queues %+v", q)
	}
}

func TestDecodeJobMessage(t *testing.T) {
	m, err := DecodeJobMessage([]byte(`{"job_id":"01J0000000000000000000000A"}`))
	if err != nil || m.JobID != "01J0000000000000000000000A" {
		t.Fatalf("decode: %+v %v", m, err)
	}
	if _, err := DecodeJobMessage([]byte(`{}`)); err == nil {
		t.Fatalf("expected error for missing job_id")
	}
	if _, err := DecodeJobMessage([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed body")
	}
}
