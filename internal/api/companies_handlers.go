package api

import (
	"net/http"

	"github.com/jbweber/homelab/genrepo/internal/repository"
)

// listCompaniesHandler handles GET /api/v0/companies.
//
// Query parameters: sort, include (City, Users).
func (a *API) listCompaniesHandler(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		a.writeRepoError(w, r, err)
		return
	}

	companies, err := repository.NewCompanyRepository(a.model(r)).SelectByCondition(r.Context(), nil, opts...)
	if err != nil {
		a.writeRepoError(w, r, err)
		return
	}

	response := make([]*CompanyResponse, len(companies))
	for i, c := range companies {
		response[i] = toCompanyResponse(c)
	}
	a.writeJSON(w, http.StatusOK, response)
}
