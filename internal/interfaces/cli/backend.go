package cli

import (
	"context"

	"github.com/turtacn/molstruct/internal/application/molecule"
	"github.com/turtacn/molstruct/internal/domain/molecule/parser"
	"github.com/turtacn/molstruct/internal/infrastructure/database/memory"
	"github.com/turtacn/molstruct/pkg/client"
	mtypes "github.com/turtacn/molstruct/pkg/types/molecule"
)

// backend is where CLI commands send their work: an in-process service over
// an in-memory store, or a remote API.
type backend interface {
	Parse(ctx context.Context, filename string, data []byte, format string) (*mtypes.MoleculeDTO, error)
	CreateFromSMILES(ctx context.Context, req *mtypes.CreateFromSMILESRequest) (*mtypes.MoleculeDTO, error)
	Distances(ctx context.Context, id string) (*mtypes.DistancesResponse, error)
}

func newBackend(cc *CLIContext) (backend, error) {
	if cc.Client != nil {
		return &remoteBackend{mc: cc.Client.Molecules()}, nil
	}
	coord, err := cc.Config.Parser.NewCoordinator(parser.WithLogger(cc.Logger.Named("parser")))
	if err != nil {
		return nil, err
	}
	svc := molecule.NewService(memory.NewMoleculeStore(), coord, cc.Logger,
		molecule.WithLimits(cc.Config.Server.MaxUploadBytes, cc.Config.Parser.MaxAtoms))
	return &localBackend{svc: svc}, nil
}

type localBackend struct {
	svc molecule.Service
}

func (b *localBackend) Parse(ctx context.Context, filename string, data []byte, format string) (*mtypes.MoleculeDTO, error) {
	return b.svc.ParseUpload(ctx, &molecule.ParseUploadInput{Filename: filename, Data: data, Format: format})
}

func (b *localBackend) CreateFromSMILES(ctx context.Context, req *mtypes.CreateFromSMILESRequest) (*mtypes.MoleculeDTO, error) {
	return b.svc.CreateFromSMILES(ctx, &molecule.CreateFromSMILESInput{SMILES: req.SMILES, Name: req.Name, Minimize: req.Minimize})
}

func (b *localBackend) Distances(ctx context.Context, id string) (*mtypes.DistancesResponse, error) {
	return b.svc.BondDistances(ctx, id)
}

type remoteBackend struct {
	mc *client.MoleculesClient
}

func (b *remoteBackend) Parse(ctx context.Context, filename string, data []byte, format string) (*mtypes.MoleculeDTO, error) {
	return b.mc.Parse(ctx, &client.ParseRequest{Filename: filename, Data: data, Format: format})
}

func (b *remoteBackend) CreateFromSMILES(ctx context.Context, req *mtypes.CreateFromSMILESRequest) (*mtypes.MoleculeDTO, error) {
	return b.mc.Create(ctx, req)
}

func (b *remoteBackend) Distances(ctx context.Context, id string) (*mtypes.DistancesResponse, error) {
	return b.mc.Distances(ctx, id, nil)
}

//Personal.AI order the ending
