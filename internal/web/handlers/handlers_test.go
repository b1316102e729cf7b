package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/enroll"
	"github.com/facegate/facegate/internal/faceid"
	"github.com/facegate/facegate/internal/quality"
	"github.com/facegate/facegate/internal/store"
	"github.com/facegate/facegate/internal/store/mock"
	"github.com/facegate/facegate/internal/vecindex"
)

// fakeFaceClient returns scripted embeddings and detections.
type fakeFaceClient struct {
	embedding  []float32
	embedErr   error
	detections []faceid.Detection
	detectErr  error
}

func (f *fakeFaceClient) Embed(ctx context.Context, imageData []byte) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.embedding, nil
}

func (f *fakeFaceClient) Detect(ctx context.Context, imageData []byte) ([]faceid.Detection, error) {
	if f.detectErr != nil {
		return nil, f.detectErr
	}
	return f.detections, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.FaceService.Dim = 3
	cfg.Recognition.Threshold = 0.6
	cfg.Recognition.TopK = 5
	cfg.Enrollment.MinQuality = 0.3
	cfg.Enrollment.MinImages = 3
	cfg.Enrollment.MaxImages = 10
	cfg.Quality.Weights.Sharpness = 0.4
	cfg.Quality.Weights.Brightness = 0.3
	cfg.Quality.Weights.Contrast = 0.3
	cfg.Quality.SharpnessCeiling = 100.0
	return cfg
}

// goodImageB64 is a sharp checkerboard that clears the quality gate.
func goodImageB64(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for x := range 32 {
		for y := range 32 {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func startedManager(t *testing.T, dim int) *vecindex.Manager {
	t.Helper()
	m := vecindex.NewManager(dim, "", 10)
	m.Start()
	return m
}

func TestEnroll_Success(t *testing.T) {
	cfg := testConfig()
	identities := mock.NewMockIdentityStore()
	index := startedManager(t, 3)
	faces := &fakeFaceClient{embedding: []float32{1, 0, 0}}
	assessor := quality.NewAssessor(cfg.Quality)
	aggregator := enroll.NewAggregator(assessor, faces, cfg.Enrollment.MinQuality)
	h := NewEnrollHandler(cfg, identities, aggregator, index)

	img := goodImageB64(t)
	rec := postJSON(t, h.Enroll, map[string]any{
		"name":   "Jana Dvorakova",
		"images": []string{img, img, img},
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp enrollResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.PersonID == 0 {
		t.Error("expected a generated person id")
	}
	if resp.Accepted != 3 {
		t.Errorf("accepted = %d, want 3", resp.Accepted)
	}

	// The identity must be both stored and searchable.
	stored, err := identities.Get(context.Background(), resp.PersonID)
	if err != nil || stored == nil {
		t.Fatalf("identity not stored: %v", err)
	}
	if index.Count() != 1 {
		t.Errorf("index count = %d, want 1", index.Count())
	}
}

func TestEnroll_TooFewImages(t *testing.T) {
	cfg := testConfig()
	h := NewEnrollHandler(cfg, mock.NewMockIdentityStore(), nil, startedManager(t, 3))

	rec := postJSON(t, h.Enroll, map[string]any{
		"name":   "Jana",
		"images": []string{goodImageB64(t)},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestEnroll_NoUsableFaces(t *testing.T) {
	cfg := testConfig()
	identities := mock.NewMockIdentityStore()
	faces := &fakeFaceClient{embedErr: faceid.ErrNoFace}
	aggregator := enroll.NewAggregator(quality.NewAssessor(cfg.Quality), faces, cfg.Enrollment.MinQuality)
	h := NewEnrollHandler(cfg, identities, aggregator, startedManager(t, 3))

	img := goodImageB64(t)
	rec := postJSON(t, h.Enroll, map[string]any{
		"name":   "Jana",
		"images": []string{img, img, img},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body.String())
	}

	// Per-image reports come back with the rejection.
	var resp struct {
		Reports []enroll.ImageReport `json:"reports"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Reports) != 3 {
		t.Errorf("expected 3 reports, got %d", len(resp.Reports))
	}

	if count, _ := identities.Count(context.Background()); count != 0 {
		t.Error("failed enrollment must not store an identity")
	}
}

func TestEnroll_SaveFailure(t *testing.T) {
	cfg := testConfig()
	identities := mock.NewMockIdentityStore()
	identities.SaveError = errors.New("disk full")
	faces := &fakeFaceClient{embedding: []float32{1, 0, 0}}
	aggregator := enroll.NewAggregator(quality.NewAssessor(cfg.Quality), faces, cfg.Enrollment.MinQuality)
	index := startedManager(t, 3)
	h := NewEnrollHandler(cfg, identities, aggregator, index)

	img := goodImageB64(t)
	rec := postJSON(t, h.Enroll, map[string]any{
		"name":   "Jana",
		"images": []string{img, img, img},
	})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if index.Count() != 0 {
		t.Error("store failure must not leave an index entry behind")
	}
}

func newIdentifyFixture(t *testing.T, faces FaceClient) (*IdentifyHandler, *mock.MockIdentityStore, *vecindex.Manager) {
	t.Helper()
	cfg := testConfig()
	identities := mock.NewMockIdentityStore()
	index := startedManager(t, 3)
	matcher := vecindex.NewMatcher(index, cfg.Recognition.Threshold, cfg.Recognition.TopK)
	return NewIdentifyHandler(faces, matcher, identities), identities, index
}

func TestIdentify_Match(t *testing.T) {
	faces := &fakeFaceClient{embedding: []float32{1, 0, 0}}
	h, identities, index := newIdentifyFixture(t, faces)

	personID := identities.AddIdentity(store.IdentityRecord{Name: "Petr Svoboda", Embedding: []float32{1, 0, 0}})
	if err := index.Add(personID, []float32{1, 0, 0}); err != nil {
		t.Fatal(err)
	}

	rec := postJSON(t, h.Identify, map[string]any{"image": goodImageB64(t)})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp identifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Matched {
		t.Fatalf("expected a match: %+v", resp)
	}
	if resp.PersonID != personID || resp.Name != "Petr Svoboda" {
		t.Errorf("unexpected identity: %+v", resp)
	}
	if resp.Confidence < 0.99 {
		t.Errorf("confidence = %f, want ~1", resp.Confidence)
	}
}

func TestIdentify_NoMatch(t *testing.T) {
	faces := &fakeFaceClient{embedding: []float32{0, 0, 1}}
	h, identities, index := newIdentifyFixture(t, faces)

	personID := identities.AddIdentity(store.IdentityRecord{Name: "Petr", Embedding: []float32{1, 0, 0}})
	if err := index.Add(personID, []float32{1, 0, 0}); err != nil {
		t.Fatal(err)
	}

	rec := postJSON(t, h.Identify, map[string]any{"image": goodImageB64(t)})
	var resp identifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Matched {
		t.Errorf("orthogonal probe must not match: %+v", resp)
	}
}

func TestIdentify_NoFaceIsAnAnswer(t *testing.T) {
	h, _, _ := newIdentifyFixture(t, &fakeFaceClient{embedErr: faceid.ErrNoFace})

	rec := postJSON(t, h.Identify, map[string]any{"image": goodImageB64(t)})
	if rec.Code != http.StatusOK {
		t.Fatalf("no face is a 200 outcome, got %d", rec.Code)
	}
	var resp identifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Matched || resp.Reason != "no face detected" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestIdentify_FaceServiceDown(t *testing.T) {
	h, _, _ := newIdentifyFixture(t, &fakeFaceClient{embedErr: errors.New("connection refused")})

	rec := postJSON(t, h.Identify, map[string]any{"image": goodImageB64(t)})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestIdentify_BadBase64(t *testing.T) {
	h, _, _ := newIdentifyFixture(t, &fakeFaceClient{})

	rec := postJSON(t, h.Identify, map[string]any{"image": "%%%not-base64%%%"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCheckIn_RecordsAttendance(t *testing.T) {
	faces := &fakeFaceClient{embedding: []float32{1, 0, 0}}
	identify, identities, index := newIdentifyFixture(t, faces)
	attendance := mock.NewMockAttendanceWriter()
	h := NewAttendanceHandler(identify, attendance)

	personID := identities.AddIdentity(store.IdentityRecord{Name: "Eva", Embedding: []float32{1, 0, 0}})
	if err := index.Add(personID, []float32{1, 0, 0}); err != nil {
		t.Fatal(err)
	}

	rec := postJSON(t, h.CheckIn, map[string]any{"image": goodImageB64(t)})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp checkInResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.AttendanceUID == "" {
		t.Error("expected an attendance uid")
	}

	records := attendance.Recorded()
	if len(records) != 1 {
		t.Fatalf("expected 1 attendance record, got %d", len(records))
	}
	if records[0].PersonID != personID {
		t.Errorf("recorded person %d, want %d", records[0].PersonID, personID)
	}
	if records[0].Confidence < 0.99 {
		t.Errorf("recorded confidence = %f, want raw similarity ~1", records[0].Confidence)
	}
}

func TestCheckIn_NoMatchRecordsNothing(t *testing.T) {
	identify, _, _ := newIdentifyFixture(t, &fakeFaceClient{embedding: []float32{1, 0, 0}})
	attendance := mock.NewMockAttendanceWriter()
	h := NewAttendanceHandler(identify, attendance)

	rec := postJSON(t, h.CheckIn, map[string]any{"image": goodImageB64(t)})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(attendance.Recorded()) != 0 {
		t.Error("unmatched probe must not create an attendance record")
	}
}

func TestFaceDetect(t *testing.T) {
	faces := &fakeFaceClient{detections: []faceid.Detection{
		{BBox: []float64{1, 2, 3, 4}, DetScore: 0.93, Embedding: []float32{1, 2, 3}},
	}}
	h := NewFaceHandler(faces, quality.NewAssessor(testConfig().Quality), 0.3)

	rec := postJSON(t, h.Detect, map[string]any{"image": goodImageB64(t)})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	// Embeddings are internal; the response carries only geometry.
	if bytes.Contains(rec.Body.Bytes(), []byte("embedding")) {
		t.Error("detect response must not leak embeddings")
	}

	var resp struct {
		FacesCount int            `json:"faces_count"`
		Faces      []detectedFace `json:"faces"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.FacesCount != 1 || resp.Faces[0].DetScore != 0.93 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestFaceQualityCheck(t *testing.T) {
	h := NewFaceHandler(&fakeFaceClient{}, quality.NewAssessor(testConfig().Quality), 0.3)

	rec := postJSON(t, h.QualityCheck, map[string]any{"image": goodImageB64(t)})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var eval quality.Evaluation
	if err := json.Unmarshal(rec.Body.Bytes(), &eval); err != nil {
		t.Fatal(err)
	}
	if !eval.Suitable {
		t.Errorf("checkerboard should clear the gate: %+v", eval)
	}
}

func TestAdminRebuild(t *testing.T) {
	identities := mock.NewMockIdentityStore()
	identities.AddIdentity(store.IdentityRecord{Name: "A", Embedding: []float32{1, 0, 0}})
	identities.AddIdentity(store.IdentityRecord{Name: "B", Embedding: []float32{0, 1, 0}})
	index := startedManager(t, 3)
	h := NewAdminHandler(index, identities)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	h.Rebuild(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if index.Count() != 2 {
		t.Errorf("index count = %d, want 2", index.Count())
	}
}

func TestAdminRebuild_SourceDown(t *testing.T) {
	identities := mock.NewMockIdentityStore()
	identities.ListActiveError = errors.New("connection refused")
	index := startedManager(t, 3)
	if err := index.Add(1, []float32{1, 0, 0}); err != nil {
		t.Fatal(err)
	}
	h := NewAdminHandler(index, identities)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	h.Rebuild(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if index.Count() != 1 {
		t.Error("failed rebuild must keep the old index")
	}
}

func TestHealth(t *testing.T) {
	index := startedManager(t, 3)
	h := NewHealthHandler(index, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["index_state"] != string(vecindex.StateReady) {
		t.Errorf("index_state = %v, want ready", resp["index_state"])
	}
}
