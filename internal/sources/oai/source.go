// Package oai harvests OAI-PMH endpoints.
package oai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mkoziy/harvester/internal/harvest"
)

const DefaultMetadataPrefix = "oai_dc"

// Config selects what to list from the endpoint.
type Config struct {
	MetadataPrefix string
	Set            string
}

// Source pages through ListRecords and resolves single records with GetRecord.
type Source struct {
	client *Client
	cfg    Config
	log    *zap.Logger
}

func NewSource(client *Client, cfg Config, log *zap.Logger) *Source {
	if cfg.MetadataPrefix == "" {
		cfg.MetadataPrefix = DefaultMetadataPrefix
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{client: client, cfg: cfg, log: log}
}

// Harvest lists records changed since the given time (everything when zero),
// emitting each record as soon as its page arrives.
func (s *Source) Harvest(ctx context.Context, since time.Time, emit harvest.EmitFunc) error {
	params := ListParams{MetadataPrefix: s.cfg.MetadataPrefix, Set: s.cfg.Set, From: since}
	token := ""
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		list, err := s.client.ListRecords(ctx, params, token)
		if err != nil {
			return fmt.Errorf("ListRecords page %d: %w", page, err)
		}
		for _, r := range list.Records {
			if err := emit(MapRecord(r)); err != nil {
				return err
			}
		}

		next := ""
		if list.ResumptionToken != nil {
			next = list.ResumptionToken.Token
		}
		if next == "" {
			return nil
		}
		if next == token {
			return fmt.Errorf("ListRecords page %d: resumption token did not advance", page)
		}
		s.log.Debug("following resumption token", zap.Int("page", page), zap.String("token", next))
		token = next
	}
}

// Fetch resolves one identifier. An idDoesNotExist answer or a deleted
// header is reported as harvest.ErrRemoved.
func (s *Source) Fetch(ctx context.Context, identifier string) (harvest.Item, error) {
	r, err := s.client.GetRecord(ctx, identifier, s.cfg.MetadataPrefix)
	if err != nil {
		var perr *ProtocolError
		if errors.As(err, &perr) && perr.Code == ErrCodeIDDoesNotExist {
			return harvest.Item{}, fmt.Errorf("%s: %w", identifier, harvest.ErrRemoved)
		}
		return harvest.Item{}, err
	}
	item := MapRecord(*r)
	if item.Deleted {
		return item, fmt.Errorf("%s: %w", identifier, harvest.ErrRemoved)
	}
	return item, item.Err
}
