package handler

import (
	"net/http"

	"github.com/paiban/zhiban/internal/constraints"
)

// ConstraintLibrary 返回约束目录，可用 type=hard|soft|score 过滤
func ConstraintLibrary(w http.ResponseWriter, r *http.Request) {
	lib := constraints.GetLibrary()
	if typ := r.URL.Query().Get("type"); typ != "" {
		lib = constraints.GetByType(typ)
	}
	respondJSON(w, http.StatusOK, constraints.LibraryResponse{Library: lib})
}
