package sources

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mkoziy/harvester/internal/config"
	"github.com/mkoziy/harvester/internal/httpclient"
	"github.com/mkoziy/harvester/internal/models"
	"github.com/mkoziy/harvester/internal/ratelimit"
	"github.com/mkoziy/harvester/internal/sources/ckan"
	"github.com/mkoziy/harvester/internal/sources/csw"
	"github.com/mkoziy/harvester/internal/sources/marklogic"
	"github.com/mkoziy/harvester/internal/sources/oai"
)

// DefaultFactory builds Harvesters backed by the real protocol clients.
type DefaultFactory struct {
	store   RecordStore
	limits  ratelimit.SourceConfigs
	timeout time.Duration
	log     *zap.Logger
	opts    []HarvesterOption
}

var _ Factory = (*DefaultFactory)(nil)

func NewFactory(st RecordStore, limits ratelimit.SourceConfigs, timeout time.Duration, log *zap.Logger, opts ...HarvesterOption) *DefaultFactory {
	if log == nil {
		log = zap.NewNop()
	}
	return &DefaultFactory{store: st, limits: limits, timeout: timeout, log: log, opts: opts}
}

// New returns a fresh Harvester for repo. Each call gets its own limiter and
// error budget.
func (f *DefaultFactory) New(repo config.Repository) (Source, error) {
	proto, err := f.protocol(repo)
	if err != nil {
		return nil, err
	}
	return NewHarvester(repo, proto, f.store, f.log, f.opts...), nil
}

func (f *DefaultFactory) protocol(repo config.Repository) (Protocol, error) {
	typ := models.RepositoryType(repo.Type)
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q (repository %s)", ErrUnsupportedType, repo.Type, repo.Name)
	}
	hc, err := f.httpClient(repo)
	if err != nil {
		return nil, err
	}
	log := f.log.With(zap.String("repository", repo.Name))

	switch typ {
	case models.TypeOAI:
		cfg := oai.Config{MetadataPrefix: repo.MetadataPrefix, Set: repo.Set}
		return oai.NewSource(oai.NewClient(hc, repo.URL), cfg, log), nil
	case models.TypeCKAN:
		return ckan.NewSource(ckan.NewClient(hc, repo.URL), ckan.Config{PageSize: repo.PageSize}, log), nil
	case models.TypeMarkLogic:
		cfg := marklogic.Config{Query: repo.Query, Collection: repo.Collection, PageSize: repo.PageSize}
		return marklogic.NewSource(marklogic.NewClient(hc, repo.URL), cfg, log), nil
	case models.TypeCSW:
		return csw.NewSource(csw.NewClient(hc, repo.URL), csw.Config{PageSize: repo.PageSize}, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, repo.Type)
	}
}

// httpClient applies the rate limit configured for the repository name, or
// else for its type, or else the default entry.
func (f *DefaultFactory) httpClient(repo config.Repository) (*httpclient.Client, error) {
	rl := f.limits.For(repo.Name, repo.Type)
	limiter, err := ratelimit.NewLimiter(rl)
	if err != nil {
		return nil, fmt.Errorf("rate limiter for %s: %w", repo.Name, err)
	}
	opts := []httpclient.Option{httpclient.WithLogger(f.log)}
	if repo.APIKey != "" {
		opts = append(opts, httpclient.WithHeader("Authorization", repo.APIKey))
	}
	return httpclient.New(limiter, rl.MaxRetries, f.timeout, opts...), nil
}
