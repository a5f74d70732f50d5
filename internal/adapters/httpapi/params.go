package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/cercia-labs/cercia-core/internal/app/apperr"
)

const maxBodyBytes = 4 << 20

// pathParam binds a simple-style path parameter.
func pathParam(w http.ResponseWriter, r *http.Request, name string, dest any) bool {
	err := runtime.BindStyledParameterWithLocation("simple", false, name, runtime.ParamLocationPath, chi.URLParam(r, name), dest)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, apperr.CodeValidation, "invalid path parameter", map[string]any{name: err.Error()})
		return false
	}
	return true
}

// queryParam binds a form-style scalar query parameter.
func queryParam(w http.ResponseWriter, r *http.Request, name string, required bool, dest any) bool {
	return bindQuery(w, r, name, true, required, dest)
}

// queryList binds a comma separated list, e.g. ids=a,b.
func queryList(w http.ResponseWriter, r *http.Request, name string, dest any) bool {
	return bindQuery(w, r, name, false, false, dest)
}

func bindQuery(w http.ResponseWriter, r *http.Request, name string, explode, required bool, dest any) bool {
	if err := runtime.BindQueryParameter("form", explode, required, name, r.URL.Query(), dest); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, apperr.CodeValidation, "invalid query parameter", map[string]any{name: err.Error()})
		return false
	}
	return true
}
