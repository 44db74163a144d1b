package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"backoffice/internal/middleware"
	"backoffice/internal/service"
	"backoffice/internal/storage"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("handler-secret")

type stubSubmissions struct {
	submitErr error
	lastReq   service.SubmitPersonalInfoRequest
	lastUser  string
}

func (s *stubSubmissions) Eligibility(ctx context.Context, userID string) (service.EligibilityResponse, error) {
	return service.EligibilityResponse{SubjectID: "e1", CanSubmit: true}, nil
}

func (s *stubSubmissions) SubmitPersonalInfo(ctx context.Context, userID string, req service.SubmitPersonalInfoRequest) (service.ChangeRequestResponse, error) {
	s.lastUser = userID
	s.lastReq = req
	if s.submitErr != nil {
		return service.ChangeRequestResponse{}, s.submitErr
	}
	return service.ChangeRequestResponse{ID: "r1", Status: "pending", Kind: "personal_info"}, nil
}

func (s *stubSubmissions) ListMyRequests(ctx context.Context, userID string, page, limit int) ([]service.ChangeRequestResponse, int64, error) {
	return []service.ChangeRequestResponse{}, 0, nil
}

type stubDocuments struct {
	calls   int
	lastReq service.SubmitDocumentRequest
}

func (s *stubDocuments) SubmitDocument(ctx context.Context, userID string, req service.SubmitDocumentRequest) (service.ChangeRequestResponse, error) {
	s.calls++
	s.lastReq = req
	return service.ChangeRequestResponse{ID: "r2", Status: "pending", Kind: "document"}, nil
}

func (s *stubDocuments) ListMyDocuments(ctx context.Context, userID string) ([]service.EmployeeDocumentResponse, error) {
	return []service.EmployeeDocumentResponse{}, nil
}

type stubReview struct {
	decideErr   error
	lastOutcome string
	lastNote    string
	lastUser    string
}

func (s *stubReview) ListPending(ctx context.Context, page, limit int) ([]service.ChangeRequestResponse, int64, error) {
	return []service.ChangeRequestResponse{{ID: "r1"}}, 1, nil
}

func (s *stubReview) ListRequests(ctx context.Context, filter service.ChangeRequestFilter) ([]service.ChangeRequestResponse, int64, error) {
	return []service.ChangeRequestResponse{}, 0, nil
}

func (s *stubReview) GetRequest(ctx context.Context, id string) (service.ChangeRequestResponse, error) {
	return service.ChangeRequestResponse{}, fmt.Errorf("%w: change request %s", service.ErrNotFound, id)
}

func (s *stubReview) DocumentURL(ctx context.Context, id string) (service.DocumentURLResponse, error) {
	return service.DocumentURLResponse{URL: "http://files.test/files/x"}, nil
}

func (s *stubReview) Decide(ctx context.Context, id, reviewerID, outcome, note string) (service.ChangeRequestResponse, error) {
	s.lastOutcome = outcome
	s.lastNote = note
	s.lastUser = reviewerID
	if s.decideErr != nil {
		return service.ChangeRequestResponse{}, s.decideErr
	}
	return service.ChangeRequestResponse{ID: id, Status: "approved"}, nil
}

type testServer struct {
	router      *gin.Engine
	submissions *stubSubmissions
	documents   *stubDocuments
	review      *stubReview
}

func newTestServer(files FileOpener) *testServer {
	gin.SetMode(gin.TestMode)
	s := &testServer{
		router:      gin.New(),
		submissions: &stubSubmissions{},
		documents:   &stubDocuments{},
		review:      &stubReview{},
	}
	if files != nil {
		NewFileHandler(files).RegisterRoutes(s.router.Group(""))
	}
	api := s.router.Group("")
	api.Use(middleware.Authenticate(testSecret))
	NewChangeRequestHandler(s.submissions, s.documents).RegisterRoutes(api)
	NewReviewHandler(s.review).RegisterRoutes(api)
	return s
}

func bearer(t *testing.T, userID, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": userID, "role": role}).SignedString(testSecret)
	require.NoError(t, err)
	return "Bearer " + signed
}

func (s *testServer) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var body response.Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestSubmitPersonalInfo_UsesTokenIdentity(t *testing.T) {
	s := newTestServer(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/me/change-requests/personal-info",
		strings.NewReader(`{"fields":{"phone":"0909999999","address":null},"user_id":"someone-else"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, "user-1", "employee"))

	w, body := s.do(t, req)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "success", body.Status)
	require.Equal(t, "user-1", s.submissions.lastUser)
	require.Equal(t, "0909999999", *s.submissions.lastReq.Fields["phone"])
	require.Contains(t, s.submissions.lastReq.Fields, "address")
	require.Nil(t, s.submissions.lastReq.Fields["address"])
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&service.ValidationError{Field: "phone", Message: "bad"}, http.StatusBadRequest, "validation_failed"},
		{service.ErrNoChanges, http.StatusUnprocessableEntity, "no_changes"},
		{service.ErrConflict, http.StatusConflict, "pending_request_exists"},
		{fmt.Errorf("%w: already approved", service.ErrStaleState), http.StatusConflict, "stale_state"},
		{fmt.Errorf("%w: employee", service.ErrNotFound), http.StatusNotFound, "not_found"},
		{errors.Join(fmt.Errorf("%w: remove failed", service.ErrStorage), service.ErrConflict), http.StatusBadGateway, "storage_failed"},
		{fmt.Errorf("%w: %w", service.ErrExecutor, &service.ValidationError{Field: "birth_date"}), http.StatusInternalServerError, "executor_failed"},
		{errors.New("database gone"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			s := newTestServer(nil)
			s.submissions.submitErr = tc.err

			req := httptest.NewRequest(http.MethodPost, "/api/me/change-requests/personal-info", strings.NewReader(`{"fields":{"phone":"0909999999"}}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", bearer(t, "user-1", "employee"))

			w, body := s.do(t, req)
			require.Equal(t, tc.status, w.Code)
			require.Equal(t, tc.code, body.Code)
			require.Equal(t, "error", body.Status)
		})
	}
}

func multipartUpload(t *testing.T, fileName string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSubmitDocument_PassesUpload(t *testing.T) {
	s := newTestServer(nil)
	body, contentType := multipartUpload(t, "id.pdf", []byte("%PDF-1.4"), map[string]string{
		"document_type": "id_card",
		"notes":         "front and back",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/me/change-requests/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearer(t, "user-1", "employee"))

	w, _ := s.do(t, req)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, 1, s.documents.calls)
	require.Equal(t, "id_card", s.documents.lastReq.DocumentType)
	require.Equal(t, "id.pdf", s.documents.lastReq.FileName)
	require.Equal(t, "front and back", s.documents.lastReq.Notes)
	require.Equal(t, []byte("%PDF-1.4"), s.documents.lastReq.Content)
}

func TestSubmitDocument_OversizedUploadIsRejectedBeforeService(t *testing.T) {
	s := newTestServer(nil)
	body, contentType := multipartUpload(t, "big.pdf", bytes.Repeat([]byte{'x'}, service.MaxDocumentSize+1), map[string]string{
		"document_type": "id_card",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/me/change-requests/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearer(t, "user-1", "employee"))

	w, resp := s.do(t, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "validation_failed", resp.Code)
	require.Zero(t, s.documents.calls)
}

func TestSubmitDocument_MissingFile(t *testing.T) {
	s := newTestServer(nil)
	req := httptest.NewRequest(http.MethodPost, "/api/me/change-requests/documents", strings.NewReader("document_type=id_card"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", bearer(t, "user-1", "employee"))

	w, _ := s.do(t, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Zero(t, s.documents.calls)
}

func TestReviewRoutes_RequireReviewerRole(t *testing.T) {
	s := newTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/change-requests/pending", nil)
	req.Header.Set("Authorization", bearer(t, "user-1", "employee"))
	w, _ := s.do(t, req)
	require.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/change-requests/pending", nil)
	req.Header.Set("Authorization", bearer(t, "user-2", "hr"))
	w, body := s.do(t, req)
	require.Equal(t, http.StatusOK, w.Code)
	page, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	require.EqualValues(t, 1, page["total"])
}

func TestDecide_Routes(t *testing.T) {
	s := newTestServer(nil)

	req := httptest.NewRequest(http.MethodPut, "/api/change-requests/abc/approve", strings.NewReader(`{"note":"ok"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, "reviewer-1", "hr"))
	w, _ := s.do(t, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, service.OutcomeApprove, s.review.lastOutcome)
	require.Equal(t, "ok", s.review.lastNote)
	require.Equal(t, "reviewer-1", s.review.lastUser)

	// Reject without a body.
	req = httptest.NewRequest(http.MethodPut, "/api/change-requests/abc/reject", nil)
	req.Header.Set("Authorization", bearer(t, "reviewer-1", "admin"))
	w, _ = s.do(t, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, service.OutcomeReject, s.review.lastOutcome)
	require.Empty(t, s.review.lastNote)

	s.review.decideErr = fmt.Errorf("%w: request is already approved", service.ErrStaleState)
	req = httptest.NewRequest(http.MethodPut, "/api/change-requests/abc/reject", nil)
	req.Header.Set("Authorization", bearer(t, "reviewer-1", "hr"))
	w, body := s.do(t, req)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "stale_state", body.Code)
}

func TestGetRequest_NotFound(t *testing.T) {
	s := newTestServer(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/change-requests/abc", nil)
	req.Header.Set("Authorization", bearer(t, "reviewer-1", "hr"))

	w, body := s.do(t, req)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "not_found", body.Code)
}

func TestDownload(t *testing.T) {
	store := storage.NewFileStore(afero.NewMemMapFs(), []byte("files-key"), "http://files.test")
	_, err := store.Put(context.Background(), "employees/e1/id_card/id.pdf", strings.NewReader("%PDF-1.4 body"))
	require.NoError(t, err)
	url, err := store.SignedURL("employees/e1/id_card/id.pdf", time.Minute)
	require.NoError(t, err)
	token := strings.TrimPrefix(url, "http://files.test/files/")

	s := newTestServer(store)

	w, _ := s.do(t, httptest.NewRequest(http.MethodGet, "/files/"+token, nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "%PDF-1.4 body", w.Body.String())

	w, body := s.do(t, httptest.NewRequest(http.MethodGet, "/files/not-a-token", nil))
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "invalid_token", body.Code)

	missing, err := store.SignedURL("employees/e1/id_card/gone.pdf", time.Minute)
	require.NoError(t, err)
	w, body = s.do(t, httptest.NewRequest(http.MethodGet, "/files/"+strings.TrimPrefix(missing, "http://files.test/files/"), nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "not_found", body.Code)
}
