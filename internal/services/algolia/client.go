// Package algolia holds the shared Algolia search client construction and
// error classification used by the hosted review store, the hosted catalog
// and the generative backend's registry lookups.
package algolia

import (
	"context"
	"errors"
	"strings"

	"github.com/algolia/algoliasearch-client-go/v3/algolia/errs"
	"github.com/algolia/algoliasearch-client-go/v3/algolia/opt"
	"github.com/algolia/algoliasearch-client-go/v3/algolia/search"

	"paradiso/internal/services"
)

const serviceName = "algolia"

// Config captures the credentials for one Algolia application.
type Config struct {
	AppID  string
	APIKey string
}

// NewClient builds a search client. Empty credentials are rejected up front so
// a misconfigured store fails at startup rather than on the first page fetch.
func NewClient(cfg Config) (*search.Client, error) {
	appID := strings.TrimSpace(cfg.AppID)
	apiKey := strings.TrimSpace(cfg.APIKey)
	if appID == "" || apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, serviceName, "client", "app id and api key required", nil)
	}
	return search.NewClient(appID, apiKey), nil
}

// Classify maps an Algolia client failure onto the shared error markers.
// HTTP failures become *services.StatusError; everything else is a transport
// failure.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr *errs.NetError
	if errors.As(err, &netErr) && netErr.Code > 0 {
		return services.NewStatusError(serviceName, netErr.Code, []byte(netErr.Message), "")
	}
	return services.ClassifyTransport(serviceName, err)
}

// Index is the subset of *search.Index the repository uses. Tests substitute
// an in-memory fake.
type Index interface {
	Search(query string, opts ...interface{}) (search.QueryRes, error)
	PartialUpdateObject(object interface{}, opts ...interface{}) (search.UpdateTaskRes, error)
	SaveObjects(objects interface{}, opts ...interface{}) (search.GroupBatchRes, error)
	GetObject(objectID string, object interface{}, opts ...interface{}) error
}

// LookupByName returns the objectID of the first record whose name attribute
// matches name, or false when none exists.
func LookupByName(ctx context.Context, index Index, name string) (string, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, nil
	}
	res, err := index.Search(name,
		opt.RestrictSearchableAttributes("name"),
		opt.HitsPerPage(5),
		ctx,
	)
	if err != nil {
		return "", false, Classify(err)
	}
	for _, hit := range res.Hits {
		hitName, _ := hit["name"].(string)
		id, _ := hit["objectID"].(string)
		if id == "" {
			continue
		}
		if hitName == "" || strings.EqualFold(strings.TrimSpace(hitName), name) {
			return id, true, nil
		}
	}
	return "", false, nil
}
