package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/csrf"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"crewportal/internal/adapters/http/middleware"
	"crewportal/internal/domain/crew"
	"crewportal/internal/domain/session"
)

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// generateID creates a new UUID string.
func generateID() string {
	return uuid.New().String()
}

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("json_encode_failed", "error", err)
	}
}

// writeJSONError writes {"error": msg}.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// pageNames lists the page templates; each is parsed together with layout.html.
var pageNames = []string{
	"home.html",
	"login.html",
	"login_retry.html",
	"register.html",
	"verify.html",
	"set_password.html",
	"wizard.html",
	"profile.html",
	"airports.html",
	"feedback.html",
}

var sectionTitles = map[crew.Section]string{
	crew.SectionGeneral:  "General",
	crew.SectionPassport: "Passport",
	crew.SectionESTA:     "ESTA",
}

var templateFuncs = template.FuncMap{
	"fmtTime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Mon 2 Jan 15:04")
	},
	"sectionTitle": func(sec crew.Section) string {
		if title, ok := sectionTitles[sec]; ok {
			return title
		}
		return string(sec)
	},
	"fieldLabel": func(field string) string {
		label := strings.ReplaceAll(field, "_", " ")
		label = strings.Replace(label, "fx ", "residence ", 1)
		label = strings.Replace(label, "esta ", "ESTA ", 1)
		return strings.ToUpper(label[:1]) + label[1:]
	},
}

// parsePages parses every page once at startup.
func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tpl, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		pages[name] = tpl
	}
	return pages, nil
}

// renderContractTerms converts the embedded contract terms to HTML.
func renderContractTerms() (template.HTML, error) {
	md, err := templateFS.ReadFile("templates/contract_terms.md")
	if err != nil {
		return "", fmt.Errorf("failed to read contract terms: %w", err)
	}
	var buf bytes.Buffer
	if err := mdRenderer.Convert(md, &buf); err != nil {
		return "", fmt.Errorf("failed to render contract terms: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// pageData is what every page template receives.
type pageData struct {
	Title       string
	CSRFToken   string
	Member      bool
	DisplayName string
	Banner      string
	Error       string
	Page        any
}

// view bundles the optional parts of a render call.
type view struct {
	Status int
	Title  string
	Banner string
	Error  string
	Page   any
}

// render executes a page with the layout. The layout needs the current
// session, so it is read from the tab here.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, v view) {
	tpl, ok := s.pages[name]
	if !ok {
		internalError(w, fmt.Errorf("unknown page %s", name))
		return
	}

	data := pageData{
		Title:     v.Title,
		CSRFToken: csrf.Token(r),
		Banner:    v.Banner,
		Error:     v.Error,
		Page:      v.Page,
	}
	if tab, ok := middleware.TabFromContext(r.Context()); ok {
		sess := tab.Session()
		if sess.IsMember() {
			data.Member = true
			data.DisplayName = displayName(sess, tab)
		}
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		internalError(w, fmt.Errorf("failed to render %s: %w", name, err))
		return
	}
	status := v.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// displayName prefers the cached crew record, then the login record.
func displayName(sess session.Session, tab *middleware.Tab) string {
	if m := tab.Cache().Current(); m != nil && m.PSN == sess.PSN() {
		return m.DisplayName()
	}
	if sess.User != nil && sess.User.Name != "" {
		return sess.User.Name
	}
	return sess.PSN()
}

// tabFor returns the request's tab. The Session middleware always sets
// one, so a missing tab is a wiring error.
func tabFor(w http.ResponseWriter, r *http.Request) (*middleware.Tab, bool) {
	tab, ok := middleware.TabFromContext(r.Context())
	if !ok {
		internalError(w, fmt.Errorf("no session on %s", r.URL.Path))
	}
	return tab, ok
}

// safeReturnTo accepts only local absolute paths, so a stored return
// target can never send the browser off-site.
func safeReturnTo(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return session.HomePath
	}
	u, err := url.Parse(target)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return session.HomePath
	}
	return target
}

// methodNotAllowed answers a request whose method the route does not serve.
func methodNotAllowed(w http.ResponseWriter, allow ...string) {
	w.Header().Set("Allow", strings.Join(allow, ", "))
	w.WriteHeader(http.StatusMethodNotAllowed)
}
