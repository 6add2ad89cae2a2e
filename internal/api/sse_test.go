package api

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/broadinstitute/dig-job-server/internal/batch"
	"github.com/broadinstitute/dig-job-server/internal/job"
	"github.com/broadinstitute/dig-job-server/internal/testutil"
)

type sseEvent struct {
	Name string
	Data string
}

// readEvents consumes a server-sent event stream until the server closes it,
// returning the events in order.
func readEvents(t *testing.T, url string) []sseEvent {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data = strings.TrimPrefix(line, "data: ")
		case line == "data:":
			current.Data = ""
		case line == "":
			if current.Name != "" {
				events = append(events, current)
			}
			current = sseEvent{}
		}
	}
	return events
}

func messagesOf(events []sseEvent) []sseEvent {
	var out []sseEvent
	for _, e := range events {
		if e.Name == "message" {
			out = append(out, e)
		}
	}
	return out
}

func TestStreamJob_AttachAfterCompletion(t *testing.T) {
	t.Parallel()
	fake := batch.NewFake(batch.StateSucceeded, 0, []string{"done"})
	server, st := newTestServer(t, fake, "", 10*time.Millisecond)

	resp := postJSON(t, server.URL+"/api/analyses", map[string]any{
		"dataset": "cohort-a", "owner": "alice", "method": "sumstats",
	})
	resp.Body.Close()

	key := job.Key("cohort-a", "alice")
	ctx := context.Background()
	testutil.MustWaitFor(t, func() bool {
		status, err := st.GetStatus(ctx, key)
		return err == nil && job.IsTerminalStatus(status)
	})

	events := readEvents(t, server.URL+"/api/jobs/"+key+"/stream")

	msgs := messagesOf(events)
	if len(msgs) != 1 {
		t.Fatalf("Expected exactly one message event, got %d (%+v)", len(msgs), events)
	}
	if !strings.Contains(msgs[0].Data, "sumstats SUCCEEDED") {
		t.Errorf("message = %q, want terminal status", msgs[0].Data)
	}
}

func TestStreamJob_AttachDuringRun(t *testing.T) {
	t.Parallel()
	fake := batch.NewFake(batch.StateFailed, 10, []string{"error: convergence"})
	server, st := newTestServer(t, fake, "", 5*time.Millisecond)

	resp := postJSON(t, server.URL+"/api/analyses", map[string]any{
		"dataset": "cohort-b", "owner": "alice", "method": "sldsc",
	})
	resp.Body.Close()

	key := job.Key("cohort-b", "alice")
	ctx := context.Background()
	testutil.MustWaitFor(t, func() bool {
		_, err := st.GetStatus(ctx, key)
		return err == nil
	})

	events := readEvents(t, server.URL+"/api/jobs/"+key+"/stream")
	if len(events) == 0 {
		t.Fatal("Stream produced no events")
	}

	first := events[0]
	if first.Name != "message" || !strings.Contains(first.Data, "RUNNING sldsc") {
		t.Errorf("first event = %+v, want running status message", first)
	}

	last := events[len(events)-1]
	if last.Name != "message" || !strings.Contains(last.Data, "sldsc FAILED") {
		t.Errorf("last event = %+v, want terminal status message", last)
	}

	var keepalives int
	for _, e := range events {
		if e.Name == "keepalive" {
			keepalives++
			if e.Data != "" {
				t.Errorf("keepalive data = %q, want empty", e.Data)
			}
		}
	}
	if keepalives == 0 {
		t.Error("Expected at least one keepalive while the job ran")
	}
}

// Two streams share one notification channel per job key. When one client
// disconnects, its release of the channel must not strand the survivor: the
// survivor keeps emitting interval-paced keepalives and still relays the
// terminal status.
func TestStreamJob_SurvivesPeerDisconnect(t *testing.T) {
	t.Parallel()
	fake := batch.NewFake(batch.StateSucceeded, 60, []string{"done"})
	server, st := newTestServer(t, fake, "", 20*time.Millisecond)

	resp := postJSON(t, server.URL+"/api/analyses", map[string]any{
		"dataset": "cohort-c", "owner": "alice", "method": "sumstats",
	})
	resp.Body.Close()

	key := job.Key("cohort-c", "alice")
	ctx := context.Background()
	testutil.MustWaitFor(t, func() bool {
		_, err := st.GetStatus(ctx, key)
		return err == nil
	})
	url := server.URL + "/api/jobs/" + key + "/stream"

	// First client attaches, sees its initial event, then drops the
	// connection shortly after the second client attaches.
	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	reqA, err := http.NewRequestWithContext(ctxA, http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	respA, err := http.DefaultClient.Do(reqA)
	if err != nil {
		t.Fatal(err)
	}
	defer respA.Body.Close()
	readerA := bufio.NewReader(respA.Body)
	for {
		line, err := readerA.ReadString('\n')
		if err != nil {
			t.Fatalf("Reading first stream: %v", err)
		}
		if line == "\n" {
			break
		}
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancelA()
	}()

	events := readEvents(t, url)
	if len(events) == 0 {
		t.Fatal("Surviving stream produced no events")
	}

	last := events[len(events)-1]
	if last.Name != "message" || !strings.Contains(last.Data, "sumstats SUCCEEDED") {
		t.Errorf("last event = %+v, want terminal status message", last)
	}

	// The job runs for roughly 300ms; at a 20ms keepalive interval the
	// survivor should see on the order of fifteen keepalives, not thousands.
	var keepalives int
	for _, e := range events {
		if e.Name == "keepalive" {
			keepalives++
		}
	}
	if keepalives > 200 {
		t.Errorf("Got %d keepalives, want interval-paced delivery", keepalives)
	}
}

func TestStreamJob_UnknownJob(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t, batch.NewFake(batch.StateSucceeded, 0, nil), "", 0)

	resp, err := http.Get(server.URL + "/api/jobs/" + strings.Repeat("0", 64) + "/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}
