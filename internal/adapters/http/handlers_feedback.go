package web

import (
	"errors"
	"net/http"
	"net/url"

	"crewportal/internal/application/orchestrators"
	"crewportal/internal/domain/feedback"
)

type feedbackPage struct {
	Sent    bool
	Route   string
	Summary string
	Message string
}

// handleFeedback handles GET (form) and POST (submit) for /feedback.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	tab, ok := tabFor(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		route := "/"
		if ref, err := url.Parse(r.Referer()); err == nil && ref.Path != "" {
			route = safeReturnTo(ref.RequestURI())
		}
		if ref := r.URL.Query().Get("from"); ref != "" {
			route = safeReturnTo(ref)
		}
		s.render(w, r, "feedback.html", view{Title: "Report a problem", Page: feedbackPage{Route: route}})

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		form := feedbackPage{
			Route:   safeReturnTo(r.FormValue("route")),
			Summary: r.FormValue("summary"),
			Message: r.FormValue("message"),
		}
		if s.feedback == nil {
			internalError(w, errors.New("feedback store is not configured"))
			return
		}
		sess := tab.Session()
		_, err := orchestrators.ExecuteSubmitFeedback(r.Context(), orchestrators.SubmitFeedbackCommand{
			PSN:       sess.PSN(),
			Mode:      string(sess.Mode),
			Summary:   form.Summary,
			Message:   form.Message,
			Route:     form.Route,
			UserAgent: r.UserAgent(),
		}, orchestrators.SubmitFeedbackDeps{
			Store:      s.feedback,
			Sender:     s.sender,
			To:         s.cfg.Email.FeedbackTo,
			GenerateID: generateID,
			Now:        s.now,
		})
		if err != nil {
			if isFeedbackValidation(err) {
				s.render(w, r, "feedback.html", view{Status: http.StatusBadRequest, Title: "Report a problem", Error: err.Error(), Page: form})
				return
			}
			internalError(w, err)
			return
		}
		s.render(w, r, "feedback.html", view{Title: "Report a problem", Page: feedbackPage{Sent: true}})

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func isFeedbackValidation(err error) bool {
	return errors.Is(err, feedback.ErrEmptySummary) ||
		errors.Is(err, feedback.ErrEmptyMessage) ||
		errors.Is(err, feedback.ErrSummaryTooLong) ||
		errors.Is(err, feedback.ErrMessageTooLong)
}
