// Package ckan harvests CKAN portals through the action API.
//
// A full crawl only pre-registers dataset names from package_list; their
// metadata is filled in by staleness reconciliation through package_show.
// An incremental crawl reads complete datasets from package_search.
package ckan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mkoziy/harvester/internal/harvest"
	"github.com/mkoziy/harvester/internal/httpclient"
)

const DefaultPageSize = 1000

type Config struct {
	PageSize int
}

type Source struct {
	client *Client
	cfg    Config
	log    *zap.Logger
}

func NewSource(client *Client, cfg Config, log *zap.Logger) *Source {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{client: client, cfg: cfg, log: log}
}

func (s *Source) Harvest(ctx context.Context, since time.Time, emit harvest.EmitFunc) error {
	if since.IsZero() {
		return s.listAll(ctx, emit)
	}
	return s.listModified(ctx, since, emit)
}

func (s *Source) listAll(ctx context.Context, emit harvest.EmitFunc) error {
	for offset := 0; ; offset += s.cfg.PageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		names, err := s.client.PackageList(ctx, offset, s.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("package_list offset %d: %w", offset, err)
		}
		for _, name := range names {
			item := harvest.Item{Record: harvest.Record{Identifier: name}, HeaderOnly: true}
			if err := emit(item); err != nil {
				return err
			}
		}
		if len(names) < s.cfg.PageSize {
			return nil
		}
	}
}

func (s *Source) listModified(ctx context.Context, since time.Time, emit harvest.EmitFunc) error {
	for start := 0; ; {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := s.client.PackagesModifiedSince(ctx, since, start, s.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("package_search start %d: %w", start, err)
		}
		for _, pkg := range page.Results {
			if err := emit(MapPackage(pkg, s.client.SiteURL())); err != nil {
				return err
			}
		}
		start += len(page.Results)
		if len(page.Results) == 0 || start >= page.Count {
			s.log.Debug("package_search complete", zap.Int("count", page.Count))
			return nil
		}
	}
}

// Fetch reads one dataset with package_show. Missing and deleted datasets
// are reported as harvest.ErrRemoved.
func (s *Source) Fetch(ctx context.Context, identifier string) (harvest.Item, error) {
	pkg, err := s.client.PackageShow(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) || httpclient.IsRemoved(err) {
			return harvest.Item{}, fmt.Errorf("%s: %w", identifier, harvest.ErrRemoved)
		}
		return harvest.Item{}, err
	}
	item := MapPackage(pkg, s.client.SiteURL())
	if item.Deleted {
		return item, fmt.Errorf("%s: %w", identifier, harvest.ErrRemoved)
	}
	return item, item.Err
}
