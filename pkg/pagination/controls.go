package pagination

import (
	"net/url"
	"strconv"

	"github.com/Sternrassler/connector-poller/pkg/apierror"
)

// SplitControls removes the engine-local paginate and maxResults keys from a
// generic parameter set and returns the remaining API parameters alongside
// the parsed Options. Missing keys fall back to defaults.
func SplitControls(params url.Values, defaults Options) (url.Values, Options, error) {
	api := cloneQuery(params)
	opts := defaults

	if api.Has(ParamPaginate) {
		raw := api.Get(ParamPaginate)
		api.Del(ParamPaginate)
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, Options{}, apierror.Configuration(ParamPaginate, "invalid boolean %q", raw)
		}
		opts.Paginate = v
	}

	if api.Has(ParamMaxResults) {
		raw := api.Get(ParamMaxResults)
		api.Del(ParamMaxResults)
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return nil, Options{}, apierror.Configuration(ParamMaxResults, "invalid non-negative integer %q", raw)
		}
		opts.MaxResults = v
	}

	return api, opts, nil
}
