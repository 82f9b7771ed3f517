// Package projection is the entry point of projection predictive inference:
// a Projector holds the reference model and projects its posterior onto
// submodels over subsets of the reference covariates.
package projection

import (
	"context"
	"fmt"
	"strings"

	"github.com/banshee-data/projpred/internal/backend"
	"github.com/banshee-data/projpred/internal/config"
	"github.com/banshee-data/projpred/internal/elpd"
	"github.com/banshee-data/projpred/internal/family"
	"github.com/banshee-data/projpred/internal/model"
	"github.com/banshee-data/projpred/internal/monitoring"
	"github.com/banshee-data/projpred/internal/solver"
	"github.com/banshee-data/projpred/internal/submodel"
)

// Projector projects a fitted reference model onto submodels. The reference
// snapshot is built once by New and never modified afterwards.
type Projector struct {
	ref     *model.ModelData
	family  family.Family
	backend *backend.GLM
	factory *submodel.StructureFactory
	builder *submodel.InferenceDataBuilder
	cfg     *config.ProjectionConfig
}

// New builds a Projector over a fitted reference model. Missing
// log-likelihood and posterior-predictive groups are computed from the
// posterior; id itself is not modified. A nil cfg selects defaults.
func New(st *model.Structure, id *model.InferenceData, cfg *config.ProjectionConfig) (*Projector, error) {
	if cfg == nil {
		cfg = config.EmptyProjectionConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrInvalidArgument)
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	if !st.HasIntercept {
		return nil, fmt.Errorf("only reference models with an intercept term are supported: %w", model.ErrNotImplemented)
	}
	if id.NumSamples() != st.NumDraws {
		return nil, fmt.Errorf("posterior has %d samples, structure expects %d: %w", id.NumSamples(), st.NumDraws, model.ErrShapeMismatch)
	}

	fam, err := family.Lookup(st.Family)
	if err != nil {
		return nil, err
	}
	glm, err := backend.NewGLM(st, fam)
	if err != nil {
		return nil, err
	}

	refData := id.Clone()
	if _, ok := refData.LogLikelihood[st.ResponseName]; !ok {
		points, err := backend.PointsFromPosterior(refData)
		if err != nil {
			return nil, err
		}
		ll, err := backend.LogLikelihoodAt(glm, points)
		if err != nil {
			return nil, fmt.Errorf("reference log-likelihood: %w", err)
		}
		for name, data := range ll {
			if err := refData.AddLogLikelihood(name, data, st.NumObs); err != nil {
				return nil, err
			}
		}
	}
	if _, ok := refData.PosteriorPredictive[st.ResponseName]; !ok {
		pp, err := glm.PosteriorPredictive(refData, cfg.GetSeed())
		if err != nil {
			return nil, fmt.Errorf("reference posterior predictive: %w", err)
		}
		if err := refData.AddPosteriorPredictive(st.ResponseName, pp, st.NumObs); err != nil {
			return nil, err
		}
	}
	if _, ok := refData.ObservedData[st.ResponseName]; !ok {
		refData.ObservedData[st.ResponseName] = st.Y
	}

	est, err := looOf(refData, st.ResponseName, cfg.GetELPDWarnK())
	if err != nil {
		return nil, fmt.Errorf("reference ELPD: %w", err)
	}

	return &Projector{
		ref: &model.ModelData{
			Structure:      st,
			IData:          refData,
			DistToRefModel: 0,
			ELPD:           est,
		},
		family:  fam,
		backend: glm,
		factory: submodel.NewStructureFactory(st),
		builder: submodel.NewInferenceDataBuilder(st, refData, glm),
		cfg:     cfg,
	}, nil
}

// Reference returns the reference model snapshot.
func (p *Projector) Reference() *model.ModelData { return p.ref }

// Method returns the configured default projection method.
func (p *Projector) Method() (solver.Method, error) {
	return solver.ParseMethod(p.cfg.GetMethod())
}

// Project projects the reference posterior onto the submodel selected by
// terms. Selecting by size validates the size and then fails with
// ErrNotImplemented, since choosing which covariates to keep needs a
// search heuristic.
func (p *Projector) Project(ctx context.Context, terms model.Terms, method solver.Method) (*model.ModelData, error) {
	switch {
	case terms.ByName():
		return p.ProjectNames(ctx, terms.List(), method)
	case terms.BySize():
		if n := terms.Count(); n < 0 || n > p.ref.ModelSize() {
			return nil, fmt.Errorf("model size %d is outside [0, %d]: %w", n, p.ref.ModelSize(), model.ErrInvalidArgument)
		}
		return nil, fmt.Errorf("projection by model size needs a search heuristic: %w", model.ErrNotImplemented)
	default:
		return nil, fmt.Errorf("terms must be a list of names or a model size, got %s: %w", terms, model.ErrInvalidArgument)
	}
}

// ProjectNames projects onto the submodel over the named covariates. An
// empty list selects the intercept-only model; an empty method uses the
// configured default.
func (p *Projector) ProjectNames(ctx context.Context, names []string, method solver.Method) (*model.ModelData, error) {
	st, err := p.factory.Create(names)
	if err != nil {
		return nil, err
	}
	return p.project(ctx, st, method)
}

// ProjectSize projects onto the submodel over the first size covariates in
// reference order.
func (p *Projector) ProjectSize(ctx context.Context, size int, method solver.Method) (*model.ModelData, error) {
	st, err := p.factory.CreateSize(size)
	if err != nil {
		return nil, err
	}
	return p.project(ctx, st, method)
}

func (p *Projector) project(ctx context.Context, st *model.Structure, method solver.Method) (*model.ModelData, error) {
	if method == "" {
		m, err := p.Method()
		if err != nil {
			return nil, err
		}
		method = m
	}
	s, err := solver.New(p.ref.Structure, p.ref.IData, p.family, method, solver.Options{
		NumIters:       p.cfg.GetNumIters(),
		LearningRate:   p.cfg.GetLearningRate(),
		Workers:        p.cfg.GetWorkers(),
		MaxEvaluations: p.cfg.GetMaxEvaluations(),
	})
	if err != nil {
		return nil, err
	}
	res, err := s.Solve(ctx, st)
	if err != nil {
		return nil, err
	}
	disp, err := s.SolveDispersion(st, res)
	if err != nil {
		return nil, err
	}
	id, err := p.builder.Create(st, res.ThetaPerp, disp)
	if err != nil {
		return nil, err
	}
	est, err := looOf(id, st.ResponseName, p.cfg.GetELPDWarnK())
	if err != nil {
		return nil, fmt.Errorf("submodel ELPD: %w", err)
	}
	if est.Warning {
		monitoring.Logf("projection: ELPD of %v has Pareto k above %.2f; estimate may be unreliable", st.CommonTerms, p.cfg.GetELPDWarnK())
	}
	return &model.ModelData{
		Structure:      st,
		IData:          id,
		DistToRefModel: res.Loss,
		ELPD:           est,
		NonConverged:   res.NonConverged,
	}, nil
}

// Search would choose the best covariate order up to maxTerms. It is not
// implemented.
func (p *Projector) Search(ctx context.Context, method solver.Method, maxTerms int) ([]*model.ModelData, error) {
	return nil, fmt.Errorf("forward search: %w", model.ErrNotImplemented)
}

// Compare builds the ELPD comparison table of the given submodels against
// the reference.
func (p *Projector) Compare(subs []*model.ModelData) ([]elpd.Row, error) {
	entries := make([]elpd.Entry, len(subs))
	for i, m := range subs {
		entries[i] = elpd.Entry{Name: termLabel(m.Structure.CommonTerms), Size: m.ModelSize(), Estimate: m.ELPD}
	}
	return elpd.Compare(elpd.Entry{Name: "reference", Size: p.ref.ModelSize(), Estimate: p.ref.ELPD}, entries)
}

func (p *Projector) String() string {
	return fmt.Sprintf("Projector with reference model of %d terms.\nTerms: %s\n",
		p.ref.Structure.NumTerms, strings.Join(p.ref.Structure.TermNames, ", "))
}

func looOf(id *model.InferenceData, response string, warnK float64) (*elpd.Estimate, error) {
	ll, err := id.PooledLogLikelihood(response)
	if err != nil {
		return nil, err
	}
	return elpd.LOO(ll, id.Chains, warnK)
}

func termLabel(terms []string) string {
	if len(terms) == 0 {
		return model.InterceptName
	}
	return strings.Join(terms, " + ")
}
