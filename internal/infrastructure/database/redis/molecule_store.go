package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/molstruct/internal/domain/molecule"
	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
	mtypes "github.com/turtacn/molstruct/pkg/types/molecule"
)

const (
	moleculeKeyPrefix = "molstruct:molecule:"
	moleculeIndexKey  = "molstruct:molecules"
)

// storedMolecule is the JSON document kept under each molecule key.
type storedMolecule struct {
	Version  int                `json:"version"`
	Molecule mtypes.MoleculeDTO `json:"molecule"`
}

// MoleculeStore keeps molecules as JSON documents plus a sorted-set index
// ordered by creation time.  Entries never expire.
type MoleculeStore struct {
	client *Client
	logger logging.Logger
}

// NewMoleculeStore returns a molecule.Repository backed by Redis.
func NewMoleculeStore(client *Client, log logging.Logger) *MoleculeStore {
	return &MoleculeStore{client: client, logger: log}
}

var _ molecule.Repository = (*MoleculeStore)(nil)

func moleculeKey(id common.ID) string { return moleculeKeyPrefix + id.String() }

func notFound(id common.ID) error {
	return errors.New(errors.ErrCodeMoleculeNotFound, "molecule not found").WithDetail(id.String())
}

func (s *MoleculeStore) Save(ctx context.Context, mol *molecule.Molecule) error {
	data, err := json.Marshal(storedMolecule{Version: mol.Version, Molecule: mol.ToDTO()})
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, moleculeKey(mol.ID), data, 0)
	pipe.ZAdd(ctx, moleculeIndexKey, redis.Z{Score: float64(mol.CreatedAt.UnixMilli()), Member: mol.ID.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save molecule")
	}
	return nil
}

func (s *MoleculeStore) FindByID(ctx context.Context, id common.ID) (*molecule.Molecule, error) {
	data, err := s.client.Get(ctx, moleculeKey(id)).Bytes()
	if err == redis.Nil {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load molecule")
	}
	return decodeMolecule(data)
}

func (s *MoleculeStore) List(ctx context.Context, offset, limit int) ([]*molecule.Molecule, int64, error) {
	total, err := s.client.ZCard(ctx, moleculeIndexKey).Result()
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count molecules")
	}
	if limit <= 0 || int64(offset) >= total {
		return []*molecule.Molecule{}, total, nil
	}

	ids, err := s.client.ZRevRange(ctx, moleculeIndexKey, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list molecules")
	}
	if len(ids) == 0 {
		return []*molecule.Molecule{}, total, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = moleculeKeyPrefix + id
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load molecules")
	}

	out := make([]*molecule.Molecule, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// Index entry without a document; skipped until the next Save or Delete.
			s.logger.Warn("dangling molecule index entry", logging.String(logging.FieldMoleculeID, ids[i]))
			continue
		}
		m, err := decodeMolecule([]byte(str))
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, nil
}

func (s *MoleculeStore) Delete(ctx context.Context, id common.ID) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, moleculeKey(id))
	pipe.ZRem(ctx, moleculeIndexKey, id.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete molecule")
	}
	if del.Val() == 0 {
		return notFound(id)
	}
	return nil
}

func decodeMolecule(data []byte) (*molecule.Molecule, error) {
	var doc storedMolecule
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, ErrSerializationFailed.WithCause(err)
	}
	return molecule.FromDTO(doc.Molecule, doc.Version), nil
}

//Personal.AI order the ending
