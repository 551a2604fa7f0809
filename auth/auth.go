package auth

import (
	"net/http"
	"net/url"

	"acronym-restful/sessions"

	restful "github.com/emicklei/go-restful/v3"
	"go.uber.org/zap"
)

// IdentityAttribute is the request attribute holding the resolved *Identity.
const IdentityAttribute = "identity"

// Filters turns an Authenticator into go-restful filters.
type Filters struct {
	authenticator *Authenticator
	cookies       *sessions.CookieCodec // nil unless WithSessionCookie was called
	logger        *zap.Logger
}

func NewFilters(authenticator *Authenticator, logger *zap.Logger) *Filters {
	return &Filters{authenticator: authenticator, logger: logger.Named("auth")}
}

// WithSessionCookie makes the filters re-issue the session cookie whenever a
// session resolves, so the cookie's Max-Age follows the sliding server-side
// expiry instead of running out while the session is still in use.
func (f *Filters) WithSessionCookie(codec *sessions.CookieCodec) *Filters {
	f.cookies = codec
	return f
}

func (f *Filters) resolve(req *restful.Request, resp *restful.Response) (*Identity, error) {
	creds := f.authenticator.Credentials(req.Request.Header)
	identity, err := f.authenticator.RequireIdentity(req.Request.Context(), creds)
	if err != nil {
		return nil, err
	}
	req.SetAttribute(IdentityAttribute, identity)
	req.Request = req.Request.WithContext(WithIdentity(req.Request.Context(), identity))

	// Get already extended the session; renew the cookie to match
	if f.cookies != nil && identity.SessionID != "" {
		if err := f.cookies.Write(resp.ResponseWriter, identity.SessionID); err != nil {
			f.logger.Warn("Failed to renew session cookie", zap.Error(err))
		}
	}
	return identity, nil
}

// AuthFilter rejects requests without a valid bearer token or session
// with 401. The response does not say which mechanism failed.
func (f *Filters) AuthFilter() restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		if _, err := f.resolve(req, resp); err != nil {
			if IsAuthError(err) {
				resp.AddHeader("WWW-Authenticate", `Bearer realm="acronyms"`)
				_ = resp.WriteHeaderAndJson(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"}, restful.MIME_JSON)
				return
			}
			f.logger.Error("Identity resolution failed", zap.Error(err))
			_ = resp.WriteHeaderAndJson(http.StatusInternalServerError, map[string]string{"message": "An internal error occurred"}, restful.MIME_JSON)
			return
		}
		chain.ProcessFilter(req, resp)
	}
}

// RedirectFilter sends browsers without a valid session to loginPath.
func (f *Filters) RedirectFilter(loginPath string) restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		if _, err := f.resolve(req, resp); err != nil {
			if !IsAuthError(err) {
				f.logger.Error("Identity resolution failed", zap.Error(err))
			}
			target := loginPath
			if req.Request.Method == http.MethodGet {
				target += "?next=" + url.QueryEscape(req.Request.URL.Path) // come back here after login
			}
			resp.AddHeader("Location", target)
			resp.WriteHeader(http.StatusSeeOther)
			return
		}
		chain.ProcessFilter(req, resp)
	}
}

// OptionalFilter resolves the identity when possible and never rejects.
// Pages use it to tell logged-in visitors apart.
func (f *Filters) OptionalFilter() restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		if _, err := f.resolve(req, resp); err != nil && !IsAuthError(err) {
			f.logger.Warn("Identity resolution failed", zap.Error(err))
		}
		chain.ProcessFilter(req, resp)
	}
}

// IdentityFrom returns the identity stored by one of the filters.
func IdentityFrom(req *restful.Request) (*Identity, bool) {
	identity, ok := req.Attribute(IdentityAttribute).(*Identity)
	return identity, ok && identity != nil
}
