package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/tendertrace/rfpx/dbopen"
	"github.com/tendertrace/rfpx/ingest"
	"github.com/tendertrace/rfpx/store"
)

type testEnv struct {
	store  *store.Store
	server *httptest.Server
}

func setupEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	db := dbopen.OpenMemory(t)
	st, err := store.New(db)
	if err != nil {
		t.Fatal(err)
	}
	files, err := ingest.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}

	proc := ingest.NewProcessor(st, files)
	pool := ingest.NewPool(proc, 1, 8)
	pool.Start(t.Context())
	t.Cleanup(pool.Stop)

	srv := httptest.NewServer(New(cfg, st, files, pool).Router())
	t.Cleanup(srv.Close)
	return &testEnv{store: st, server: srv}
}

func multipartUpload(t *testing.T, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// uploadAndWait uploads a document and polls until extraction finishes.
func uploadAndWait(t *testing.T, env *testEnv, content string) string {
	t.Helper()
	body, ctype := multipartUpload(t, "rfp.txt", "text/plain", []byte(content))
	resp, err := http.Post(env.server.URL+"/v1/documents", ctype, body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("upload status: got %d, want 202", resp.StatusCode)
	}
	var up struct {
		DocumentID string `json:"document_id"`
		JobID      string `json:"job_id"`
	}
	decodeJSON(t, resp, &up)
	if up.DocumentID == "" || up.JobID == "" {
		t.Fatalf("upload response incomplete: %+v", up)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		doc, err := env.store.GetDocument(up.DocumentID)
		if err != nil {
			t.Fatal(err)
		}
		if doc.Status == store.DocStatusCompleted || doc.Status == store.DocStatusFailed {
			return up.DocumentID
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("extraction did not finish in time")
	return ""
}

const sampleRFP = `Section C: Statement of Work
The contractor shall submit status reports monthly.
The system shall maintain uptime of 99.9%.
Offerors must adhere to NIST 800-171 security controls per Attachment 3.
`

func TestUploadAndExtract(t *testing.T) {
	env := setupEnv(t, nil)
	docID := uploadAndWait(t, env, sampleRFP)

	resp, err := http.Get(env.server.URL + "/v1/documents/" + docID)
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Document     store.Document `json:"document"`
		Requirements []struct {
			Classification string `json:"classification"`
			ConfidenceTier string `json:"confidence_tier"`
			Status         string `json:"status"`
		} `json:"requirements"`
	}
	decodeJSON(t, resp, &got)

	if got.Document.Status != store.DocStatusCompleted {
		t.Fatalf("document status: got %q", got.Document.Status)
	}
	if len(got.Requirements) != 3 {
		t.Fatalf("requirements: got %d, want 3", len(got.Requirements))
	}
	for _, r := range got.Requirements {
		if r.Status != store.StatusAIExtracted {
			t.Fatalf("status: got %q", r.Status)
		}
		switch r.ConfidenceTier {
		case "low", "medium", "high":
		default:
			t.Fatalf("tier: got %q", r.ConfidenceTier)
		}
	}
}

func TestUpload_UnsupportedType(t *testing.T) {
	env := setupEnv(t, nil)
	body, ctype := multipartUpload(t, "page.html", "text/html", []byte("<p>hi</p>"))
	resp, err := http.Post(env.server.URL+"/v1/documents", ctype, body)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status: got %d, want 415", resp.StatusCode)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	env := setupEnv(t, nil)
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("other", "value")
	w.Close()
	resp, err := http.Post(env.server.URL+"/v1/documents", w.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", resp.StatusCode)
	}
}

func TestUpload_TooLarge(t *testing.T) {
	env := setupEnv(t, func(c *Config) { c.MaxFileMB = 1 })
	big := bytes.Repeat([]byte("a"), 2*1024*1024)
	body, ctype := multipartUpload(t, "big.txt", "text/plain", big)
	resp, err := http.Post(env.server.URL+"/v1/documents", ctype, body)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status: got %d, want 413", resp.StatusCode)
	}
}

func TestDocumentStatus(t *testing.T) {
	env := setupEnv(t, nil)
	docID := uploadAndWait(t, env, sampleRFP)

	resp, err := http.Get(env.server.URL + "/v1/documents/" + docID + "/status")
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Status string     `json:"status"`
		Job    *store.Job `json:"job"`
	}
	decodeJSON(t, resp, &got)
	if got.Status != store.DocStatusCompleted {
		t.Fatalf("status: got %q", got.Status)
	}
	if got.Job == nil || got.Job.Status != store.JobCompleted {
		t.Fatalf("job: %+v", got.Job)
	}
}

func TestDocument_NotFound(t *testing.T) {
	env := setupEnv(t, nil)
	for _, path := range []string{"/v1/documents/nope", "/v1/documents/nope/status", "/v1/documents/nope/stats", "/v1/documents/nope/matrix"} {
		resp, err := http.Get(env.server.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: got %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestPendingQueue(t *testing.T) {
	env := setupEnv(t, nil)
	uploadAndWait(t, env, sampleRFP)

	resp, err := http.Get(env.server.URL + "/v1/requirements/pending?sort=confidence&order=asc")
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Requirements []struct {
			ID         string  `json:"id"`
			Confidence float64 `json:"confidence"`
		} `json:"requirements"`
	}
	decodeJSON(t, resp, &got)
	if len(got.Requirements) != 3 {
		t.Fatalf("pending: got %d, want 3", len(got.Requirements))
	}
	for i := 1; i < len(got.Requirements); i++ {
		if got.Requirements[i].Confidence < got.Requirements[i-1].Confidence {
			t.Fatalf("not ascending: %+v", got.Requirements)
		}
	}

	// Tier filter with an unknown name is rejected.
	resp, err = http.Get(env.server.URL + "/v1/requirements/pending?tier=extreme")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad tier: got %d, want 400", resp.StatusCode)
	}

	// Medium tier keeps only requirements with confidence in [0.3, 0.7).
	resp, err = http.Get(env.server.URL + "/v1/requirements/pending?tier=medium")
	if err != nil {
		t.Fatal(err)
	}
	var medium struct {
		Requirements []struct {
			Confidence float64 `json:"confidence"`
		} `json:"requirements"`
	}
	decodeJSON(t, resp, &medium)
	for _, r := range medium.Requirements {
		if r.Confidence < 0.3 || r.Confidence >= 0.7 {
			t.Fatalf("confidence %v outside medium tier", r.Confidence)
		}
	}
}

func patchJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPatch, url, bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestValidateRequirement(t *testing.T) {
	env := setupEnv(t, nil)
	docID := uploadAndWait(t, env, sampleRFP)

	reqs, err := env.store.ListRequirements(t.Context(), docID)
	if err != nil {
		t.Fatal(err)
	}
	target := reqs[0].ID

	resp := patchJSON(t, env.server.URL+"/v1/requirements/"+target,
		map[string]string{"action": "approve", "actor": "alice"})
	var got struct {
		Status      string `json:"status"`
		ValidatedBy string `json:"validated_by"`
		History     []struct {
			Action string `json:"action"`
		} `json:"history"`
	}
	decodeJSON(t, resp, &got)
	if got.Status != store.StatusHumanValidated {
		t.Fatalf("status: got %q", got.Status)
	}
	if got.ValidatedBy != "alice" {
		t.Fatalf("validated_by: got %q", got.ValidatedBy)
	}
	if len(got.History) != 1 || got.History[0].Action != "approve" {
		t.Fatalf("history: %+v", got.History)
	}
}

func TestValidateRequirement_InvalidAction(t *testing.T) {
	env := setupEnv(t, nil)
	docID := uploadAndWait(t, env, sampleRFP)
	reqs, _ := env.store.ListRequirements(t.Context(), docID)

	resp := patchJSON(t, env.server.URL+"/v1/requirements/"+reqs[0].ID,
		map[string]string{"action": "destroy"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", resp.StatusCode)
	}

	// Unchanged on disk.
	r, err := env.store.GetRequirement(t.Context(), reqs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != store.StatusAIExtracted || len(r.History) != 0 {
		t.Fatalf("requirement mutated: status %q, history %d", r.Status, len(r.History))
	}
}

func TestValidateRequirement_NotFound(t *testing.T) {
	env := setupEnv(t, nil)
	resp := patchJSON(t, env.server.URL+"/v1/requirements/nope",
		map[string]string{"action": "approve"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestDocumentStatsAndMatrix(t *testing.T) {
	env := setupEnv(t, nil)
	docID := uploadAndWait(t, env, sampleRFP)

	resp, err := http.Get(env.server.URL + "/v1/documents/" + docID + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	var stats store.Stats
	decodeJSON(t, resp, &stats)
	if stats.Total != 3 || stats.Performance != 1 || stats.Compliance != 1 || stats.Deliverable != 1 {
		t.Fatalf("stats: %+v", stats)
	}

	resp, err = http.Get(env.server.URL + "/v1/documents/" + docID + "/matrix")
	if err != nil {
		t.Fatal(err)
	}
	var matrix struct {
		Matrix []store.MatrixRow `json:"matrix"`
	}
	decodeJSON(t, resp, &matrix)
	if len(matrix.Matrix) != 3 {
		t.Fatalf("matrix: got %d rows, want 3", len(matrix.Matrix))
	}
}

func TestHealth(t *testing.T) {
	env := setupEnv(t, nil)
	resp, err := http.Get(env.server.URL + "/v1/health")
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]string
	decodeJSON(t, resp, &got)
	if got["status"] != "ok" {
		t.Fatalf("health: %+v", got)
	}
}

func TestRequestID(t *testing.T) {
	env := setupEnv(t, nil)
	resp, err := http.Get(env.server.URL + "/v1/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("X-Request-ID header missing")
	}
}

func TestRateLimit(t *testing.T) {
	env := setupEnv(t, func(c *Config) {
		c.RateLimits = map[string]int{"/v1/health": 2}
	})

	for i := 0; i < 2; i++ {
		resp, err := http.Get(env.server.URL + "/v1/health")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: got %d", i, resp.StatusCode)
		}
	}
	resp, err := http.Get(env.server.URL + "/v1/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("over limit: got %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatal("Retry-After missing")
	}

	// Unlimited paths stay open.
	resp, err = http.Get(env.server.URL + "/v1/documents")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unlimited path: got %d", resp.StatusCode)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	env := setupEnv(t, nil)
	resp, err := http.Get(env.server.URL + "/v1/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("security headers not applied")
	}
}

func TestBasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	env := setupEnv(t, func(c *Config) {
		c.Auth = AuthConfig{Enabled: true, Username: "reviewer", PasswordBcrypt: string(hash)}
	})

	resp, err := http.Get(env.server.URL + "/v1/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no creds: got %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/v1/health", nil)
	req.SetBasicAuth("reviewer", "wrong")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password: got %d, want 401", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, env.server.URL+"/v1/health", nil)
	req.SetBasicAuth("reviewer", "hunter2")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("good creds: got %d, want 200", resp.StatusCode)
	}
}
