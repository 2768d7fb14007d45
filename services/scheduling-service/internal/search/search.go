package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/inventory"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/pricing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Catalog is the read side of branch, bay and service configuration.
type Catalog interface {
	Branch(ctx context.Context, id string) (model.Branch, error)
	Branches(ctx context.Context) ([]model.Branch, error)
	Bays(ctx context.Context, branchIDs []string) ([]model.ServiceBay, error)
	Services(ctx context.Context) ([]model.Service, error)
}

// Occupancy lists what blocks a bay: non-cancelled bookings and maintenance blocks
// intersecting [from, to).
type Occupancy interface {
	BusyIntervals(ctx context.Context, bayID string, from, to time.Time) ([]availability.Interval, error)
}

type Config struct {
	Step             time.Duration
	MaxWorkers       int
	Budget           time.Duration
	Location         *time.Location
	AlternativeLimit int
}

func (c Config) withDefaults() Config {
	if c.Step <= 0 {
		c.Step = availability.DefaultStep
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 8
	}
	if c.Budget <= 0 {
		c.Budget = 3 * time.Second
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.AlternativeLimit <= 0 {
		c.AlternativeLimit = 5
	}
	return c
}

type Searcher struct {
	catalog   Catalog
	occupancy Occupancy
	gate      *inventory.Gate
	prices    pricing.Resolver
	logger    *slog.Logger
	cfg       Config
	tracer    trace.Tracer
	now       func() time.Time
}

func New(catalog Catalog, occupancy Occupancy, gate *inventory.Gate, prices pricing.Resolver, logger *slog.Logger, cfg Config) *Searcher {
	return &Searcher{
		catalog:   catalog,
		occupancy: occupancy,
		gate:      gate,
		prices:    prices,
		logger:    logger,
		cfg:       cfg.withDefaults(),
		tracer:    otel.Tracer("scheduling-service/search"),
		now:       time.Now,
	}
}

// GetAvailability answers which bays can take the requested service on the requested date.
// Domain outcomes (ambiguous service, shortage, closed branch, no slots) come back as a
// Result; only input errors, unknown branches and systemic failures are returned as errors.
func (s *Searcher) GetAvailability(ctx context.Context, req Request) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "search.availability", trace.WithAttributes(
		attribute.String("service.ref", req.ServiceRef),
		attribute.String("branch.id", req.BranchID),
		attribute.String("date", req.Date),
	))
	defer span.End()

	res, err := s.getAvailability(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(
		attribute.String("result.status", string(res.Status)),
		attribute.Int("result.bays", len(res.Bays)),
		attribute.Bool("result.incomplete", res.Incomplete),
	)
	return res, nil
}

func (s *Searcher) getAvailability(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.ServiceRef) == "" {
		return Result{}, model.Invalid("service", "is required")
	}
	date, err := model.ParseDate("date", req.Date, time.UTC)
	if err != nil {
		return Result{}, err
	}
	// A date already over at UTC-12 is over everywhere. Branch zones are checked once
	// the branches are known.
	if s.isPast(date, westernmost) {
		return Result{}, model.Invalid("date", "%s is in the past", req.Date)
	}
	requestedMinute := -1
	if strings.TrimSpace(req.ExplicitTime) != "" {
		if requestedMinute, err = model.ParseClock("time", req.ExplicitTime); err != nil {
			return Result{}, err
		}
	}
	dateStr := date.Format(model.DateLayout)

	services, err := s.catalog.Services(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load services: %w", err)
	}
	resolution := resolveService(req.ServiceRef, services)
	if resolution.kind != serviceResolved {
		return s.needsSelection(ctx, req, dateStr, resolution)
	}
	svc := resolution.service
	svcOption, err := s.option(ctx, req.BranchID, svc)
	if err != nil {
		return Result{}, err
	}
	if !svc.Schedulable() {
		res := newResult(StatusFull, model.ReasonServiceNotSchedulable,
			fmt.Sprintf("%s has no estimated duration and cannot be scheduled", svc.Name), dateStr)
		res.Service = &svcOption
		return res, nil
	}

	branches, early, err := s.eligibleBranches(ctx, req.BranchID, svc, services, date)
	if err != nil || early != nil {
		if early != nil {
			early.Service = &svcOption
			return *early, nil
		}
		return Result{}, err
	}

	bays, err := s.eligibleBays(ctx, branches)
	if err != nil {
		return Result{}, err
	}
	if len(bays) == 0 {
		res := newResult(StatusFull, model.ReasonNoBays, "no service bay is currently accepting bookings", dateStr)
		res.Service = &svcOption
		return res, nil
	}

	outcomes := s.fanOut(ctx, bays, branches, date, time.Duration(svc.DurationMinutes)*time.Minute)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res, err := s.aggregate(bays, branches, outcomes, dateStr, svc)
	if err != nil {
		return Result{}, err
	}
	res.Service = &svcOption
	if requestedMinute >= 0 {
		applyRequestedTime(&res, model.At(date, requestedMinute).Format(model.ClockLayout))
	}
	return res, nil
}

func (s *Searcher) needsSelection(ctx context.Context, req Request, date string, r serviceResolution) (Result, error) {
	options, err := pricing.Options(ctx, s.prices, req.BranchID, r.candidates)
	if err != nil {
		return Result{}, fmt.Errorf("price candidates: %w", err)
	}
	unresolved := &model.ServiceUnresolvedError{Ref: req.ServiceRef, Ambiguous: r.kind == serviceAmbiguous, Candidates: options}
	msg := unresolved.Error() + "; please choose one of the listed services"
	res := newResult(StatusNeedsServiceSelection, model.ReasonServiceUnresolved, msg, date)
	res.SuggestedServices = options
	return res, nil
}

func (s *Searcher) option(ctx context.Context, branchID string, svc model.Service) (model.ServiceOption, error) {
	opts, err := pricing.Options(ctx, s.prices, branchID, []model.Service{svc})
	if err != nil {
		return model.ServiceOption{}, fmt.Errorf("price service %s: %w", svc.ID, err)
	}
	return opts[0], nil
}

// eligibleBranches returns the branches whose bays should be searched. A non-nil Result
// ends the search early with a structured outcome.
func (s *Searcher) eligibleBranches(ctx context.Context, branchID string, svc model.Service, catalog []model.Service, day time.Time) (map[string]model.Branch, *Result, error) {
	date := day.Format(model.DateLayout)
	if branchID != "" {
		branch, err := s.catalog.Branch(ctx, branchID)
		if err != nil {
			return nil, nil, err
		}
		if s.isPast(day, branch.Location(s.cfg.Location)) {
			return nil, nil, model.Invalid("date", "%s is in the past at %s", date, branch.Name)
		}
		if !branch.Active {
			res := newResult(StatusFull, model.ReasonBranchInactive, fmt.Sprintf("branch %s is not taking bookings", branch.Name), date)
			return nil, &res, nil
		}
		verdict, err := s.gate.Check(ctx, branch.ID, svc)
		if err != nil {
			return nil, nil, err
		}
		if !verdict.Available {
			res, err := s.shortage(ctx, branch, svc, catalog, verdict, date)
			return nil, res, err
		}
		return map[string]model.Branch{branch.ID: branch}, nil, nil
	}

	all, err := s.catalog.Branches(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load branches: %w", err)
	}
	out := map[string]model.Branch{}
	active, past := 0, 0
	for _, b := range all {
		if !b.Active {
			continue
		}
		active++
		if s.isPast(day, b.Location(s.cfg.Location)) {
			past++
			continue
		}
		verdict, err := s.gate.Check(ctx, b.ID, svc)
		if err != nil {
			return nil, nil, err
		}
		if verdict.Available {
			out[b.ID] = b
		}
	}
	if active > 0 && past == active {
		return nil, nil, model.Invalid("date", "%s is in the past at every branch", date)
	}
	if len(out) == 0 {
		res := newResult(StatusFull, model.ReasonOutOfStock,
			fmt.Sprintf("no branch currently has the materials for %s", svc.Name), date)
		return nil, &res, nil
	}
	return out, nil, nil
}

func (s *Searcher) shortage(ctx context.Context, branch model.Branch, svc model.Service, catalog []model.Service, v inventory.Verdict, date string) (*Result, error) {
	var others []model.Service
	for _, c := range catalog {
		if c.ID != svc.ID && c.Schedulable() {
			others = append(others, c)
		}
	}
	inStock, err := s.gate.InStock(ctx, branch.ID, byName(others))
	if err != nil {
		return nil, err
	}
	if len(inStock) > s.cfg.AlternativeLimit {
		inStock = inStock[:s.cfg.AlternativeLimit]
	}
	alternatives, err := pricing.Options(ctx, s.prices, branch.ID, inStock)
	if err != nil {
		return nil, fmt.Errorf("price alternatives: %w", err)
	}

	var shortageErr *model.InventoryShortageError
	errors.As(v.Err(branch.ID, svc.ID), &shortageErr)
	res := newResult(StatusFull, model.ReasonOutOfStock,
		fmt.Sprintf("%s is unavailable at %s (%s)", svc.Name, branch.Name, shortageErr.Detail()), date)
	res.Shortage = &Shortage{Missing: v.Missing, Insufficient: v.Insufficient}
	if alternatives != nil {
		res.SuggestedServices = alternatives
	}
	return &res, nil
}

func (s *Searcher) eligibleBays(ctx context.Context, branches map[string]model.Branch) ([]model.ServiceBay, error) {
	ids := make([]string, 0, len(branches))
	for id := range branches {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	all, err := s.catalog.Bays(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load bays: %w", err)
	}
	bays := make([]model.ServiceBay, 0, len(all))
	for _, b := range all {
		if _, ok := branches[b.BranchID]; ok && b.Bookable() {
			bays = append(bays, b)
		}
	}
	slices.SortFunc(bays, func(a, b model.ServiceBay) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return bays, nil
}

var westernmost = time.FixedZone("UTC-12", -12*60*60)

// isPast reports whether the calendar date day has already ended in loc.
func (s *Searcher) isPast(day time.Time, loc *time.Location) bool {
	return day.Format(model.DateLayout) < s.now().In(loc).Format(model.DateLayout)
}

type bayOutcome struct {
	slots []time.Time
	err   error
}

// fanOut computes every bay on a bounded pool under the search budget. Each task owns
// outcomes[i]; nothing else is shared between tasks.
func (s *Searcher) fanOut(ctx context.Context, bays []model.ServiceBay, branches map[string]model.Branch, date time.Time, duration time.Duration) []bayOutcome {
	budgetCtx, cancel := context.WithTimeout(ctx, s.cfg.Budget)
	defer cancel()

	now := s.now()
	outcomes := make([]bayOutcome, len(bays))
	var g errgroup.Group
	g.SetLimit(s.cfg.MaxWorkers)
	for i, bay := range bays {
		i, bay := i, bay
		g.Go(func() error {
			outcomes[i] = s.computeBay(budgetCtx, bay, branches[bay.BranchID], date, duration, now)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (s *Searcher) computeBay(ctx context.Context, bay model.ServiceBay, branch model.Branch, date time.Time, duration time.Duration, now time.Time) bayOutcome {
	if err := ctx.Err(); err != nil {
		return bayOutcome{err: err}
	}
	ctx, span := s.tracer.Start(ctx, "search.bay", trace.WithAttributes(attribute.String("bay.id", bay.ID)))
	defer span.End()

	window, err := availability.WorkingWindow(branch, date, branch.Location(s.cfg.Location))
	if err != nil {
		span.SetAttributes(attribute.String("bay.outcome", model.CodeOf(err)))
		return bayOutcome{err: err}
	}
	busy, err := s.occupancy.BusyIntervals(ctx, bay.ID, window.Start, window.End)
	if err != nil {
		span.RecordError(err)
		return bayOutcome{err: fmt.Errorf("busy intervals for bay %s: %w", bay.ID, err)}
	}
	slots := availability.BaySlots(window, busy, duration, s.cfg.Step, now)
	span.SetAttributes(attribute.Int("bay.slots", len(slots)))
	return bayOutcome{slots: slots}
}

func (s *Searcher) aggregate(bays []model.ServiceBay, branches map[string]model.Branch, outcomes []bayOutcome, date string, svc model.Service) (Result, error) {
	var (
		available  []BayAvailability
		union      []string
		succeeded  int
		closed     []*model.BranchClosedError
		unfinished []string
		failures   []error
	)
	for i, o := range outcomes {
		bay := bays[i]
		var closedErr *model.BranchClosedError
		switch {
		case o.err == nil:
			succeeded++
			if len(o.slots) == 0 {
				continue
			}
			branch := branches[bay.BranchID]
			clock := availability.FormatSlots(o.slots, branch.Location(s.cfg.Location))
			available = append(available, BayAvailability{
				BayID:          bay.ID,
				BayName:        bay.Name,
				BranchID:       bay.BranchID,
				BranchName:     branch.Name,
				AvailableSlots: clock,
			})
			union = append(union, clock...)
		case errors.As(o.err, &closedErr):
			closed = append(closed, closedErr)
		case errors.Is(o.err, context.DeadlineExceeded), errors.Is(o.err, context.Canceled):
			unfinished = append(unfinished, bay.ID)
		default:
			failures = append(failures, o.err)
			unfinished = append(unfinished, bay.ID)
			s.logger.Warn("bay availability failed", "bay_id", bay.ID, "date", date, "err", o.err)
		}
	}

	if succeeded == 0 && len(failures) > 0 {
		return Result{}, fmt.Errorf("availability search: no bay could be computed: %w", errors.Join(failures...))
	}

	var res Result
	switch {
	case len(available) > 0:
		slices.Sort(union)
		res = newResult(StatusAvailable, "", fmt.Sprintf("%d bay(s) available for %s on %s", len(available), svc.Name, date), date)
		res.Bays = available
		res.SuggestedSlots = slices.Compact(union)
	case len(closed) == len(bays):
		res = newResult(StatusFull, model.ReasonBranchClosed, closedMessage(closed, date), date)
	case succeeded == 0:
		res = newResult(StatusFull, ReasonSearchIncomplete,
			fmt.Sprintf("availability search ran out of time before any bay finished for %s", date), date)
	default:
		res = newResult(StatusFull, model.ReasonFullyBooked,
			fmt.Sprintf("every bay is fully booked for %s on %s", svc.Name, date), date)
	}

	if len(unfinished) > 0 {
		res.Incomplete = true
		res.UnfinishedBays = unfinished
		res.Message += fmt.Sprintf(" (incomplete: %d bay(s) not checked)", len(unfinished))
	}
	return res, nil
}

func closedMessage(closed []*model.BranchClosedError, date string) string {
	names := map[string]struct{}{}
	for _, c := range closed {
		name := c.BranchName
		if name == "" {
			name = c.BranchID
		}
		names[name] = struct{}{}
	}
	if len(names) == 1 {
		return closed[0].Error()
	}
	list := make([]string, 0, len(names))
	for n := range names {
		list = append(list, n)
	}
	slices.Sort(list)
	return fmt.Sprintf("all branches (%s) are closed on %s", strings.Join(list, ", "), date)
}

// applyRequestedTime narrows an available result to the bays offering clock, or keeps every
// bay and points at the closest alternatives when none does.
func applyRequestedTime(res *Result, clock string) {
	res.RequestedTime = clock
	found := false
	res.RequestedTimeAvailable = &found
	if res.Status != StatusAvailable {
		return
	}

	var offering []BayAvailability
	for _, b := range res.Bays {
		if slices.Contains(b.AvailableSlots, clock) {
			offering = append(offering, b)
		}
	}
	if len(offering) > 0 {
		found = true
		res.Bays = offering
		res.Message = fmt.Sprintf("%s is available on %d bay(s)", clock, len(offering))
		return
	}
	res.Message = fmt.Sprintf("%s is not available; closest alternatives: %s", clock, strings.Join(closest(res.SuggestedSlots, clock, 3), ", "))
}

func closest(slots []string, clock string, n int) []string {
	target, err := model.ParseClock("time", clock)
	if err != nil {
		return nil
	}
	ranked := slices.Clone(slots)
	slices.SortStableFunc(ranked, func(a, b string) int {
		ma, _ := model.ParseClock("time", a)
		mb, _ := model.ParseClock("time", b)
		return cmp.Compare(abs(ma-target), abs(mb-target))
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	slices.Sort(ranked)
	return ranked
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
