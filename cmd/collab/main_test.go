package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"collab/internal/logging"
)

func TestTaskLifecycle(t *testing.T) {
	logger = zap.NewNop()
	dataDir = t.TempDir()

	output := captureOutput(t, func() {
		if err := runTaskCreate(taskCreateCmd, []string{"revisar", "a", "ata"}); err != nil {
			t.Fatalf("runTaskCreate returned error: %v", err)
		}
	})
	if !strings.Contains(output, "Tarefa criada com sucesso!") {
		t.Fatalf("expected creation confirmation, got: %s", output)
	}

	output = captureOutput(t, func() {
		if err := runTaskList(taskListCmd, nil); err != nil {
			t.Fatalf("runTaskList returned error: %v", err)
		}
	})
	if !strings.Contains(output, "revisar a ata") {
		t.Fatalf("expected task in listing, got: %s", output)
	}

	// Listing lines start with the task id.
	start := strings.Index(output, "task_")
	if start < 0 {
		t.Fatalf("expected a task id in listing, got: %s", output)
	}
	id := output[start : start+13]

	output = captureOutput(t, func() {
		if err := runTaskDone(taskDoneCmd, []string{id}); err != nil {
			t.Fatalf("runTaskDone returned error: %v", err)
		}
	})
	if !strings.Contains(output, "concluída") {
		t.Fatalf("expected completion notice, got: %s", output)
	}

	output = captureOutput(t, func() {
		if err := runTaskList(taskListCmd, nil); err != nil {
			t.Fatalf("runTaskList returned error: %v", err)
		}
	})
	if !strings.Contains(output, "Nenhuma tarefa pendente.") {
		t.Fatalf("expected empty listing, got: %s", output)
	}
}

func TestRunVotePrintsTally(t *testing.T) {
	logger = zap.NewNop()
	dataDir = t.TempDir()

	if err := voteCmd.Flags().Set("user", "ana"); err != nil {
		t.Fatalf("failed to set user flag: %v", err)
	}

	output := captureOutput(t, func() {
		if err := runVote(voteCmd, []string{"mudar a daily", "sim"}); err != nil {
			t.Fatalf("runVote returned error: %v", err)
		}
	})
	if !strings.Contains(output, `Placar de "mudar a daily": sim=1 não=0 abster=0 (1 votos)`) {
		t.Fatalf("expected tally line, got: %s", output)
	}

	// Same user voting again on the same topic is rejected.
	err := runVote(voteCmd, []string{"mudar a daily", "não"})
	if err == nil || !strings.Contains(err.Error(), "já votou") {
		t.Fatalf("expected duplicate vote error, got: %v", err)
	}
}

func TestRunVoteRejectsInvalidChoice(t *testing.T) {
	logger = zap.NewNop()
	dataDir = t.TempDir()

	if err := voteCmd.Flags().Set("user", "bruno"); err != nil {
		t.Fatalf("failed to set user flag: %v", err)
	}

	err := runVote(voteCmd, []string{"tema qualquer", "talvez"})
	if err == nil || !strings.Contains(err.Error(), "voto inválido") {
		t.Fatalf("expected invalid choice error, got: %v", err)
	}
}

func TestShowStatus(t *testing.T) {
	logger = zap.NewNop()
	dataDir = t.TempDir()

	output := captureOutput(t, func() {
		if err := showStatus(statusCmd, nil); err != nil {
			t.Fatalf("showStatus returned error: %v", err)
		}
	})

	if !strings.Contains(output, "collab Status") {
		t.Fatalf("expected status header, got: %s", output)
	}
	if !strings.Contains(output, "Tasks:  0") {
		t.Fatalf("expected zero tasks, got: %s", output)
	}
}

func TestRunIngestRecordsIndexEvent(t *testing.T) {
	logger = zap.NewNop()
	dataDir = t.TempDir()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"embedding":[0.1,0.2,0.3]}`)
	}))
	defer srv.Close()

	cfgPath := filepath.Join(t.TempDir(), "collab.yaml")
	cfg := fmt.Sprintf("embedding:\n  provider: ollama\n  endpoint: %s\n", srv.URL)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	origConfig := configPath
	configPath = cfgPath
	defer func() { configPath = origConfig }()

	pdfPath := filepath.Join(t.TempDir(), "ata.pdf")
	writeOnePagePDF(t, pdfPath, "ola mundo")

	output := captureOutput(t, func() {
		if err := runIngest(ingestCmd, []string{pdfPath}); err != nil {
			t.Fatalf("runIngest returned error: %v", err)
		}
	})
	if !strings.Contains(output, "Indexed") {
		t.Fatalf("expected index confirmation, got: %s", output)
	}

	data, err := os.ReadFile(filepath.Join(dataDir, "logs", "actions.jsonl"))
	if err != nil {
		t.Fatalf("read actions.jsonl: %v", err)
	}
	var indexed *logging.Action
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var a logging.Action
		if err := json.Unmarshal([]byte(line), &a); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		if a.Type == logging.ActionIndex {
			indexed = &a
			break
		}
	}
	if indexed == nil {
		t.Fatalf("no index event in action log:\n%s", data)
	}
	if indexed.Count != 1 {
		t.Errorf("index event count = %d, want 1", indexed.Count)
	}
}

// writeOnePagePDF emits a minimal uncompressed single-page PDF whose content
// stream draws the given ASCII text.
func writeOnePagePDF(t *testing.T, path, text string) {
	t.Helper()

	var b bytes.Buffer
	offsets := make([]int, 6)
	add := func(n int, body string) {
		offsets[n] = b.Len()
		b.WriteString(body)
	}

	b.WriteString("%PDF-1.4\n")
	add(1, "1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	add(2, "2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	add(3, "3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
		"/Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>\nendobj\n")
	stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET\n", text)
	add(4, fmt.Sprintf("4 0 obj\n<< /Length %d >>\nstream\n%sendstream\nendobj\n", len(stream), stream))
	add(5, "5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xref := b.Len()
	b.WriteString("xref\n0 6\n0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref)

	if err := os.WriteFile(path, b.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	origErr := os.Stderr
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, rOut)
		_, _ = io.Copy(&buf, rErr)
		done <- buf.String()
	}()

	fn()

	_ = wOut.Close()
	_ = wErr.Close()
	os.Stdout = origOut
	os.Stderr = origErr
	return <-done
}
