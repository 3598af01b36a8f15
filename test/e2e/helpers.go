//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"hash/fnv"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/caseforge/internal/api/handlers"
	"github.com/cloo-solutions/caseforge/internal/jobs"
	"github.com/cloo-solutions/caseforge/internal/project"
	"github.com/cloo-solutions/caseforge/internal/server"
	"github.com/cloo-solutions/caseforge/internal/service"
	"github.com/cloo-solutions/caseforge/internal/storage"
	"github.com/cloo-solutions/caseforge/internal/testutil"
	"github.com/cloo-solutions/caseforge/internal/textsplit"
	"github.com/cloo-solutions/caseforge/internal/vectorstore"
)

const embeddingDims = 8

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T             *testing.T
	Ctx           context.Context
	RustFSC       *testutil.RustFSContainer
	S3Client      *storage.S3Client
	Generator     *scriptedGenerator
	ArchiveWorker *jobs.Worker
	Server        *httptest.Server
	HTTPClient    *http.Client
}

// SetupE2EEnv starts the archive store container and an in-process server
// wired against deterministic embedding and generation fakes.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	rc := testutil.NewRustFSContainer(ctx, t)

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-uploads",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	projects, err := project.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create project store: %v", err)
	}

	backend := vectorstore.NewSQLiteBackend(embeddingDims)
	embedder := &hashEmbedder{dims: embeddingDims}
	generator := newScriptedGenerator()

	archiveProcessor := jobs.NewArchiveProcessor(s3Client)
	archiveWorker := jobs.NewWorker(archiveProcessor, 200*time.Millisecond)
	go archiveWorker.Start(ctx)

	splitCfg := textsplit.Config{Size: 120, Overlap: 20}
	ingestSvc := service.NewIngestService(projects, backend, embedder, archiveProcessor, splitCfg)
	retrieveSvc := service.NewRetrieveService(projects, backend, embedder)
	testCaseSvc := service.NewTestCaseService(retrieveSvc, generator, 5)
	scriptSvc := service.NewScriptService(projects, retrieveSvc, generator, 5)

	router := server.NewRouter(server.RouterConfig{
		ProjectHandler:  handlers.NewProjectHandler(ingestSvc, retrieveSvc, 30*time.Second),
		RetrieveHandler: handlers.NewRetrieveHandler(retrieveSvc),
		GenerateHandler: handlers.NewGenerateHandler(testCaseSvc, scriptSvc, 30*time.Second),
	})

	srv := httptest.NewServer(router)

	return &E2ETestEnv{
		T:             t,
		Ctx:           ctx,
		RustFSC:       rc,
		S3Client:      s3Client,
		Generator:     generator,
		ArchiveWorker: archiveWorker,
		Server:        srv,
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.ArchiveWorker != nil {
		e.ArchiveWorker.Stop()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
}

// hashEmbedder produces deterministic unit vectors from text content so that
// identical chunks always embed identically.
type hashEmbedder struct {
	dims int
}

func (h *hashEmbedder) vectorFor(text string) []float32 {
	seed := fnv.New64a()
	seed.Write([]byte(text))
	sum := seed.Sum64()

	vec := make([]float32, h.dims)
	var norm float64
	for i := range vec {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], sum+uint64(i))
		word := fnv.New32a()
		word.Write(buf[:])
		vec[i] = float32(word.Sum32()%1000) / 1000
		norm += float64(vec[i]) * float64(vec[i])
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

func (h *hashEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = h.vectorFor(text)
	}
	return vectors, nil
}

func (h *hashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return h.vectorFor(text), nil
}

var chunkIDPattern = regexp.MustCompile(`\[chunk id: ([^\]]+)\]`)

// scriptedGenerator answers generation prompts deterministically. Test case
// prompts get a single case grounded on the first chunk id found in the
// prompt; script prompts get a fixed script with configurable selectors.
type scriptedGenerator struct {
	mu        sync.Mutex
	selectors []string
}

func newScriptedGenerator() *scriptedGenerator {
	return &scriptedGenerator{selectors: []string{"#pay"}}
}

// SetSelectors overrides the selectors the next script response reports.
func (g *scriptedGenerator) SetSelectors(selectors []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selectors = selectors
}

func (g *scriptedGenerator) GenerateJSON(ctx context.Context, system, user string) (string, error) {
	if strings.Contains(system, "Playwright") {
		g.mu.Lock()
		selectors := append([]string(nil), g.selectors...)
		g.mu.Unlock()

		out, _ := json.Marshal(map[string]interface{}{
			"script":    "await page.click('" + selectors[0] + "');",
			"selectors": selectors,
		})
		return string(out), nil
	}

	ids := chunkIDPattern.FindAllStringSubmatch(user, -1)
	if len(ids) == 0 {
		return `{"missing_documentation": true, "message": "MISSING_DOCUMENTATION: no excerpts provided"}`, nil
	}

	out, _ := json.Marshal(map[string]interface{}{
		"test_cases": []map[string]interface{}{
			{
				"id":              "TC-001",
				"feature":         "checkout",
				"scenario":        "applies a valid discount code",
				"expected_result": "total is reduced",
				"steps":           []string{"open checkout", "enter code", "apply"},
				"classification":  "positive",
				"grounded_on":     []string{ids[0][1]},
			},
		},
	})
	return string(out), nil
}

type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Code  string          `json:"code"`
}

// PostFiles uploads the given named documents as a multipart request.
func (e *E2ETestEnv) PostFiles(path string, files map[string]string) (int, *apiResponse) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			e.T.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			e.T.Fatalf("failed to write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		e.T.Fatalf("failed to finalize upload: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, e.Server.URL+path, body)
	if err != nil {
		e.T.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return e.do(req)
}

// PostJSON sends a JSON request body.
func (e *E2ETestEnv) PostJSON(path string, payload interface{}) (int, *apiResponse) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.T.Fatalf("failed to marshal payload: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, e.Server.URL+path, bytes.NewReader(data))
	if err != nil {
		e.T.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

// Get sends a GET request.
func (e *E2ETestEnv) Get(path string) (int, *apiResponse) {
	req, err := http.NewRequest(http.MethodGet, e.Server.URL+path, nil)
	if err != nil {
		e.T.Fatalf("failed to create request: %v", err)
	}
	return e.do(req)
}

func (e *E2ETestEnv) do(req *http.Request) (int, *apiResponse) {
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		e.T.Fatalf("failed to read response: %v", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		e.T.Fatalf("failed to parse response %q: %v", string(data), err)
	}
	return resp.StatusCode, &apiResp
}

// DecodeData unmarshals the data envelope into out.
func (e *E2ETestEnv) DecodeData(resp *apiResponse, out interface{}) {
	if err := json.Unmarshal(resp.Data, out); err != nil {
		e.T.Fatalf("failed to decode response data %q: %v", string(resp.Data), err)
	}
}

// WaitForArchivedObject polls the archive store until the key exists.
func (e *E2ETestEnv) WaitForArchivedObject(key string) {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := e.S3Client.HeadObject(e.Ctx, key); err == nil {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	e.T.Fatalf("object %s was not archived in time", key)
}
