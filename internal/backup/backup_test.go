package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/praxisbackup/internal/catalog"
	"github.com/dukerupert/praxisbackup/internal/database"
	"github.com/dukerupert/praxisbackup/internal/model"
	"github.com/dukerupert/praxisbackup/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []*s3.PutObjectInput
	putErr  error
	delErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	m.puts = append(m.puts, input)
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delErr != nil {
		return nil, m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

// memStore is an ArtifactStore that serves its objects over HTTP so the
// verifier can fetch them.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	putErr  error
	delErr  error
	// mutate rewrites a body before it is served.
	mutate func([]byte) []byte
	srv    *httptest.Server
}

func newMemStore(t *testing.T) *memStore {
	t.Helper()
	m := &memStore{objects: make(map[string][]byte)}
	m.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		body, ok := m.objects[strings.TrimPrefix(r.URL.Path, "/")]
		mutate := m.mutate
		m.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		if mutate != nil {
			body = mutate(body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	t.Cleanup(m.srv.Close)
	return m
}

func (m *memStore) Put(_ context.Context, key string, body []byte) (string, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = body
	return m.srv.URL + "/" + key, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.objects, key)
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testCatalog = catalog.MustNew(
	[]string{"users", "practice_types"},
	[]string{"team_members", "todos", "documents", "ai_sessions"},
	"",
)

type testEnv struct {
	db        *sql.DB
	schedules *store.ScheduleStore
	practices *store.PracticeStore
	backups   *store.BackupStore
	objects   *memStore
	resolver  *Resolver
	exporter  *Exporter
	ledger    *Ledger
	runner    *Runner
	events    []Event
}

func setupEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := testLogger()
	env := &testEnv{
		db:        db,
		schedules: store.NewScheduleStore(db),
		practices: store.NewPracticeStore(db),
		backups:   store.NewBackupStore(db),
		objects:   newMemStore(t),
	}
	env.resolver = NewResolver(env.schedules, env.practices, logger)
	env.exporter = NewExporter(testCatalog, store.NewTableReader(db), logger)
	env.ledger = NewLedger(env.backups, env.schedules, env.objects, logger)
	verifier := NewVerifier(&http.Client{Timeout: 5 * time.Second}, logger)
	env.runner = NewRunner(env.resolver, env.exporter, env.objects, verifier, env.ledger,
		func(e Event) { env.events = append(env.events, e) }, logger)
	env.runner.now = func() time.Time { return now }
	return env
}

func (e *testEnv) exec(t *testing.T, q string, args ...any) {
	t.Helper()
	if _, err := e.db.Exec(q, args...); err != nil {
		t.Fatalf("exec %q: %v", q, err)
	}
}

func (e *testEnv) addPractice(t *testing.T, name string) string {
	t.Helper()
	p, err := e.practices.Create(context.Background(), name)
	if err != nil {
		t.Fatalf("create practice: %v", err)
	}
	return p.ID
}

func (e *testEnv) addSchedule(t *testing.T, s model.BackupSchedule) model.BackupSchedule {
	t.Helper()
	created, err := e.schedules.Create(context.Background(), s)
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	return *created
}

// seedTodos inserts n todos for practiceID.
func (e *testEnv) seedTodos(t *testing.T, practiceID string, n int) {
	t.Helper()
	for i := range n {
		e.exec(t, `INSERT INTO todos (id, practice_id, title) VALUES (?, ?, ?)`,
			fmt.Sprintf("%s-todo-%d", practiceID, i), practiceID, fmt.Sprintf("Task %d", i))
	}
}

func ptr[T any](v T) *T { return &v }
