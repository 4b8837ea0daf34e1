package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"skillbadge/internal/badge/handler/mocks"
	"skillbadge/internal/badge/models"
	id "skillbadge/pkg/domain"
	dErrors "skillbadge/pkg/domain-errors"
	"skillbadge/pkg/requestcontext"
	"skillbadge/pkg/testutil"
)

const testUser = id.UserID("user_2abc")

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	catalog *mocks.MockCatalog
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.catalog = mocks.NewMockCatalog(s.ctrl)

	h := New(s.service, s.catalog, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := r.Header.Get("X-Test-User"); user != "" {
				r = r.WithContext(requestcontext.WithUserID(r.Context(), id.UserID(user)))
			}
			next.ServeHTTP(w, r)
		})
	})
	h.Register(s.router)
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) serve(req *http.Request, user id.UserID) *httptest.ResponseRecorder {
	if user != "" {
		req.Header.Set("X-Test-User", user.String())
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func uploadRequest(s *HandlerSuite, name, contentType string, data []byte) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	s.Require().NoError(mw.WriteField("name", name))
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="certificate"; filename="cert.pdf"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	s.Require().NoError(err)
	_, err = part.Write(data)
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/badges/issue", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (s *HandlerSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func (s *HandlerSuite) TestIssue() {
	s.Run("issued badge", func() {
		attemptID := id.NewAttemptID()
		s.service.EXPECT().Issue(gomock.Any(), models.IssueRequest{
			UserID:       testUser,
			Filename:     "cert.pdf",
			ContentType:  "application/pdf",
			Data:         []byte("%PDF-1.4"),
			ExpectedName: "Ada Lovelace",
		}).Return(models.Issued(attemptID, models.BadgeRecord{
			Cluster:  "Machine Learning",
			ImageURL: "https://gw.example/ipfs/bafk",
			TokenID:  "17",
			MintedAt: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
		}), nil)

		w := s.serve(uploadRequest(s, "  Ada Lovelace ", "application/pdf", []byte("%PDF-1.4")), testUser)
		s.Equal(http.StatusOK, w.Code)
		body := s.decode(w)
		s.Equal("issued", body["outcome"])
		s.Equal(attemptID.String(), body["attempt_id"])
		s.Equal("17", body["token_id"])
	})

	s.Run("rejection is a 200 with reason", func() {
		s.service.EXPECT().Issue(gomock.Any(), gomock.Any()).
			Return(models.Rejected(id.NewAttemptID(), models.ReasonInvalidCertificate), nil)

		w := s.serve(uploadRequest(s, "Ada", "image/png", []byte("png")), testUser)
		s.Equal(http.StatusOK, w.Code)
		s.Equal("invalid certificate", s.decode(w)["reason"])
	})

	s.Run("still processing returns accepted with ref", func() {
		attemptID := id.NewAttemptID()
		s.service.EXPECT().Issue(gomock.Any(), gomock.Any()).
			Return(models.WorkflowResult{AttemptID: attemptID},
				dErrors.WithRef(dErrors.CodeTimeout, "issuance still processing", attemptID.String(), nil))

		w := s.serve(uploadRequest(s, "Ada", "application/pdf", []byte("%PDF")), testUser)
		s.Equal(http.StatusAccepted, w.Code)
		s.Equal(attemptID.String(), s.decode(w)["ref"])
	})

	s.Run("unauthenticated", func() {
		w := s.serve(uploadRequest(s, "Ada", "application/pdf", []byte("%PDF")), "")
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("blank name", func() {
		w := s.serve(uploadRequest(s, "   ", "application/pdf", []byte("%PDF")), testUser)
		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("validation_error", s.decode(w)["error"])
	})

	s.Run("unsupported media type", func() {
		w := s.serve(uploadRequest(s, "Ada", "application/zip", []byte("PK")), testUser)
		s.Equal(http.StatusUnsupportedMediaType, w.Code)
	})

	s.Run("not multipart", func() {
		req := httptest.NewRequest(http.MethodPost, "/badges/issue", bytes.NewBufferString(`{"name":"Ada"}`))
		req.Header.Set("Content-Type", "application/json")
		w := s.serve(req, testUser)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *HandlerSuite) TestIssueMiddlewareWrapsOnlyUpload() {
	var hits int
	h := New(s.service, s.catalog, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithIssueMiddleware(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits++
				w.WriteHeader(http.StatusTooManyRequests)
			})
		}))
	r := chi.NewRouter()
	h.Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/badges/issue", nil))
	s.Equal(http.StatusTooManyRequests, w.Code)

	s.catalog.EXPECT().Entries().Return(nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/badges/catalog", nil))
	s.Equal(http.StatusOK, w.Code)
	s.Equal(1, hits)
}

func (s *HandlerSuite) TestListBadges() {
	s.service.EXPECT().ListBadges(gomock.Any(), testUser).Return(nil, nil)

	w := s.serve(httptest.NewRequest(http.MethodGet, "/badges", nil), testUser)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"badges":[]}`, w.Body.String())
}

func (s *HandlerSuite) TestCatalog() {
	s.catalog.EXPECT().Entries().Return([]models.BadgeMetadata{
		{Cluster: "Machine Learning", SkillName: "ML Practitioner", ContentURI: "ipfs://bafk"},
	})

	w := s.serve(httptest.NewRequest(http.MethodGet, "/badges/catalog", nil), "")
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"badges":[{"cluster":"Machine Learning","skill_name":"ML Practitioner","content_uri":"ipfs://bafk"}]}`, w.Body.String())
}

func (s *HandlerSuite) TestGetAttempt() {
	s.Run("owned attempt", func() {
		a := testutil.NewAttemptBuilder().
			WithUser(testUser).
			InState(models.StatePersistFailed).
			Minted("17", "ipfs://bafk").
			Build()
		s.service.EXPECT().GetAttempt(gomock.Any(), testUser, a.ID).Return(a, nil)

		w := s.serve(httptest.NewRequest(http.MethodGet, "/badges/attempts/"+a.ID.String(), nil), testUser)
		s.Equal(http.StatusOK, w.Code)
		body := s.decode(w)
		s.Equal("persist_failed", body["state"])
		s.Equal("17", body["token_id"])
	})

	s.Run("invalid id", func() {
		w := s.serve(httptest.NewRequest(http.MethodGet, "/badges/attempts/nope", nil), testUser)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("not found", func() {
		attemptID := id.NewAttemptID()
		s.service.EXPECT().GetAttempt(gomock.Any(), testUser, attemptID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "attempt not found"))

		w := s.serve(httptest.NewRequest(http.MethodGet, "/badges/attempts/"+attemptID.String(), nil), testUser)
		s.Equal(http.StatusNotFound, w.Code)
	})
}

func (s *HandlerSuite) TestRepair() {
	s.Run("repairs owned attempt", func() {
		a := models.NewAttempt(testUser, "bafk", time.Now())
		s.service.EXPECT().GetAttempt(gomock.Any(), testUser, a.ID).Return(a, nil)
		s.service.EXPECT().Repair(gomock.Any(), a.ID).
			Return(models.Issued(a.ID, models.BadgeRecord{TokenID: "17"}), nil)

		w := s.serve(httptest.NewRequest(http.MethodPost, "/badges/attempts/"+a.ID.String()+"/repair", nil), testUser)
		s.Equal(http.StatusOK, w.Code)
		s.Equal("issued", s.decode(w)["outcome"])
	})

	s.Run("other users attempt is not repaired", func() {
		attemptID := id.NewAttemptID()
		s.service.EXPECT().GetAttempt(gomock.Any(), testUser, attemptID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "attempt not found"))

		w := s.serve(httptest.NewRequest(http.MethodPost, "/badges/attempts/"+attemptID.String()+"/repair", nil), testUser)
		s.Equal(http.StatusNotFound, w.Code)
	})

	s.Run("not repairable", func() {
		a := models.NewAttempt(testUser, "bafk", time.Now())
		s.service.EXPECT().GetAttempt(gomock.Any(), testUser, a.ID).Return(a, nil)
		s.service.EXPECT().Repair(gomock.Any(), a.ID).
			Return(models.WorkflowResult{}, dErrors.New(dErrors.CodeConflict, "attempt is not repairable"))

		w := s.serve(httptest.NewRequest(http.MethodPost, "/badges/attempts/"+a.ID.String()+"/repair", nil), testUser)
		s.Equal(http.StatusConflict, w.Code)
	})
}
