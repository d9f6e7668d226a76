package httpapi

import (
	"errors"
	"net/http"

	"github.com/ileri/atelier/analysis"
	"github.com/ileri/atelier/idgen"
	"github.com/ileri/atelier/observability"
)

// visitorCookie carries the id of the visitor's consultation. The photo and
// the report on screen are per visitor; the result cache and the rate limit
// behind them are shared.
const visitorCookie = "consultation"

// visitor returns the consultation for the request's cookie. With create
// set, a missing or unknown one is started and the cookie (re)issued.
func (s *Server) visitor(w http.ResponseWriter, r *http.Request, create bool) (*analysis.Session, bool) {
	var id string
	if c, err := r.Cookie(visitorCookie); err == nil {
		id, _ = idgen.Parse(c.Value)
	}
	if id != "" {
		if sess, ok := s.visitors.Lookup(id); ok {
			s.setVisitorCookie(w, r, id)
			return sess, true
		}
	}
	if !create {
		return nil, false
	}
	if id == "" {
		id = idgen.New()
	}
	s.setVisitorCookie(w, r, id)
	return s.visitors.Open(id), true
}

func (s *Server) setVisitorCookie(w http.ResponseWriter, r *http.Request, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     visitorCookie,
		Value:    id,
		Path:     "/api/analysis",
		MaxAge:   int(s.visitors.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   s.secureCookie || r.TLS != nil,
	})
}

type analysisRequest struct {
	// Image is base64 data, optionally as a data URL.
	Image string `json:"image" validate:"required"`
	Lang  string `json:"lang"`
}

type analysisResponse struct {
	Result   *analysis.Result  `json:"result"`
	Language analysis.Language `json:"language"`
	Cached   bool              `json:"cached"`
	// SymmetryPercent and EyeOpening are the display forms of the
	// numeric metrics.
	SymmetryPercent int    `json:"symmetryPercent"`
	EyeOpening      string `json:"eyeOpening"`
}

func newAnalysisResponse(o analysis.Outcome) analysisResponse {
	return analysisResponse{
		Result:          o.Result,
		Language:        o.Language,
		Cached:          o.Cached,
		SymmetryPercent: analysis.SymmetryPercent(o.Result.Metrics.FaceSymmetryScore),
		EyeOpening:      analysis.EyeOpeningLabel(o.Result.Metrics.EyeOpeningRatio),
	}
}

// requestLang reads ?lang=, then the body's lang. The default is Turkish.
func requestLang(r *http.Request, body string) (analysis.Language, error) {
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = body
	}
	if lang == "" {
		return analysis.Turkish, nil
	}
	return analysis.ParseLanguage(lang)
}

// handleAnalysis loads a new photo and returns its report. The answer is
// always a complete report; a failed or throttled remote call yields the
// curated fallback for the language.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	var in analysisRequest
	if !s.decode(w, r, &in) {
		return
	}
	lang, err := requestLang(r, in.Lang)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	image, err := analysis.DecodeImage(in.Image, s.maxImage)
	if errors.Is(err, analysis.ErrImageTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	consult, _ := s.visitor(w, r, true)
	out := consult.Upload(r.Context(), image, lang)
	s.logAnalysis(r, out, "upload")
	writeJSON(w, http.StatusOK, newAnalysisResponse(out))
}

type languageRequest struct {
	Lang string `json:"lang"`
}

// handleAnalysisLanguage re-renders the current photo's report in another
// language, from the cache when it was seen before.
func (s *Server) handleAnalysisLanguage(w http.ResponseWriter, r *http.Request) {
	var in languageRequest
	if r.ContentLength != 0 && !s.decode(w, r, &in) {
		return
	}
	lang, err := requestLang(r, in.Lang)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	consult, ok := s.visitor(w, r, false)
	if !ok {
		writeError(w, http.StatusConflict, analysis.ErrNoImage)
		return
	}
	out, err := consult.SwitchLanguage(r.Context(), lang)
	if errors.Is(err, analysis.ErrNoImage) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	s.logAnalysis(r, out, "switch_language")
	writeJSON(w, http.StatusOK, newAnalysisResponse(out))
}

func (s *Server) handleAnalysisDisplayed(w http.ResponseWriter, r *http.Request) {
	consult, ok := s.visitor(w, r, false)
	if !ok {
		writeError(w, http.StatusNotFound, analysis.ErrNoImage)
		return
	}
	out, ok := consult.Displayed()
	if !ok {
		writeError(w, http.StatusNotFound, analysis.ErrNoImage)
		return
	}
	writeJSON(w, http.StatusOK, newAnalysisResponse(out))
}

func (s *Server) logAnalysis(r *http.Request, out analysis.Outcome, action string) {
	s.events.LogEvent(r.Context(), observability.BusinessEvent{
		EventType:   "analysis",
		ServiceName: "httpapi",
		EntityType:  "report",
		EntityID:    string(out.Language),
		Action:      action,
		Details:     analysisDetails(out),
		Success:     !out.Fallback,
	})
}

func analysisDetails(out analysis.Outcome) string {
	switch {
	case out.Throttled:
		return `{"outcome":"throttled"}`
	case out.Fallback:
		return `{"outcome":"fallback"}`
	case out.Cached:
		return `{"outcome":"cached"}`
	}
	return `{"outcome":"fresh"}`
}
