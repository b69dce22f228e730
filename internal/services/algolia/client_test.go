package algolia

import (
	"context"
	"errors"
	"testing"

	"github.com/algolia/algoliasearch-client-go/v3/algolia/errs"
	"github.com/algolia/algoliasearch-client-go/v3/algolia/search"

	"paradiso/internal/services"
)

type stubIndex struct {
	hits  []map[string]interface{}
	err   error
	query string
}

func (s *stubIndex) Search(query string, opts ...interface{}) (search.QueryRes, error) {
	s.query = query
	return search.QueryRes{Hits: s.hits}, s.err
}

func (s *stubIndex) PartialUpdateObject(interface{}, ...interface{}) (search.UpdateTaskRes, error) {
	return search.UpdateTaskRes{}, nil
}

func (s *stubIndex) SaveObjects(interface{}, ...interface{}) (search.GroupBatchRes, error) {
	return search.GroupBatchRes{}, nil
}

func (s *stubIndex) GetObject(string, interface{}, ...interface{}) error { return nil }

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(Config{AppID: "app"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	client, err := NewClient(Config{AppID: "app", APIKey: "key"})
	if err != nil || client == nil {
		t.Fatalf("NewClient: client=%v err=%v", client, err)
	}
}

func TestClassifyStatus(t *testing.T) {
	err := Classify(errs.NewNetError(429, "too many requests"))
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	if code, ok := services.StatusCode(err); !ok || code != 429 {
		t.Fatalf("expected status 429, got %d %v", code, ok)
	}
	if err := Classify(errors.New("dial tcp: refused")); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient, got %v", err)
	}
	if Classify(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestLookupByNameMatchesExactName(t *testing.T) {
	index := &stubIndex{hits: []map[string]interface{}{
		{"objectID": "p-other", "name": "Guess Movie Title v2"},
		{"objectID": "p-1", "name": "Guess Movie Title"},
	}}
	id, ok, err := LookupByName(context.Background(), index, "Guess Movie Title")
	if err != nil || !ok || id != "p-1" {
		t.Fatalf("LookupByName: id=%q ok=%v err=%v", id, ok, err)
	}
	if index.query != "Guess Movie Title" {
		t.Fatalf("unexpected query %q", index.query)
	}
}

func TestLookupByNameMissing(t *testing.T) {
	_, ok, err := LookupByName(context.Background(), &stubIndex{}, "absent")
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}
