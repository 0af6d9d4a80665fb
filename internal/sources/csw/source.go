// Package csw harvests OGC Catalogue Service (CSW 2.0.2) endpoints using the
// Dublin Core output schema.
package csw

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mkoziy/harvester/internal/harvest"
)

const DefaultPageSize = 50

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

// Harvest follows nextRecord until the catalogue reports 0 or stops
// returning records.
func (s *Source) Harvest(ctx context.Context, since time.Time, emit harvest.EmitFunc) error {
	for position := 1; position > 0; {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := s.client.GetRecords(ctx, since, position, s.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("GetRecords position %d: %w", position, err)
		}
		for _, r := range res.Records {
			if err := emit(MapRecord(r)); err != nil {
				return err
			}
		}
		if len(res.Records) == 0 || res.NextRecord > res.Matched {
			break
		}
		if res.NextRecord != 0 && res.NextRecord <= position {
			return fmt.Errorf("GetRecords position %d: nextRecord %d did not advance", position, res.NextRecord)
		}
		s.log.Debug("next page", zap.Int("next", res.NextRecord), zap.Int("matched", res.Matched))
		position = res.NextRecord
	}
	return nil
}

// Fetch resolves one identifier with GetRecordById; an empty answer is
// reported as harvest.ErrRemoved.
func (s *Source) Fetch(ctx context.Context, identifier string) (harvest.Item, error) {
	r, err := s.client.GetRecordByID(ctx, identifier)
	if err != nil {
		return harvest.Item{}, err
	}
	if r == nil {
		return harvest.Item{}, fmt.Errorf("%s: %w", identifier, harvest.ErrRemoved)
	}
	item := MapRecord(*r)
	return item, item.Err
}
