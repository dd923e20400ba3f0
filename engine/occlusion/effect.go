package occlusion

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-occlusion/common"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/drawable"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/renderer"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/shading"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/viewport"
)

// ErrNotPrepared is returned when module parameters are read before the first PreRender.
var ErrNotPrepared = errors.New("occlusion: parameters read before PreRender")

// ErrEffectClosed is returned by PreRender once the effect has been closed.
var ErrEffectClosed = errors.New("occlusion: effect closed")

// Mode selects which items an effect collects and how consumers match the identity map.
type Mode int

const (
	// ModeCollision collects colliding items per channel; the highest priority wins each pixel
	// and every member samples the map at its anchor.
	ModeCollision Mode = iota
	// ModeMask collects mask-operation items per mask channel as coverage; items masked by the
	// channel sample it per fragment.
	ModeMask
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeMask {
		return "mask"
	}
	return "collision"
}

// Pass names the draw an item's shading parameters are requested for.
type Pass int

const (
	// PassMain is the visible draw.
	PassMain Pass = iota
	// PassIdentity is the draw into a channel's identity map.
	PassIdentity
)

// FrameInputs is what the host hands an effect once per frame.
type FrameInputs struct {
	Items []drawable.Drawable
	// Viewports holds the active viewports. Only the first one is used.
	Viewports    []viewport.Viewport
	CanvasWidth  int
	CanvasHeight int

	// LayerFilter drops items from occlusion for this frame. Dropped items neither write identity
	// nor sample, so they draw unoccluded.
	LayerFilter    func(drawable.Drawable) bool
	OnViewActivate func(viewport.Viewport)
}

// ChannelParameters is the state published for one channel.
type ChannelParameters struct {
	Channel string
	// Enabled is false when consumers must not sample; Target is then the dummy target.
	Enabled          bool
	Target           renderer.RenderTarget
	Width            int
	Height           int
	Bounds           common.Bounds
	TextureBounds    common.Bounds
	TexelMatrix      [16]float32
	CoordinateOrigin [2]float64
	CoordinateSystem viewport.CoordinateSystem
}

// MaskRecord is the combined extent of every published mask channel.
type MaskRecord struct {
	Bounds           common.Bounds
	CoordinateOrigin [2]float64
	CoordinateSystem viewport.CoordinateSystem
}

// ModuleParameters is the state an effect publishes for the main pass.
type ModuleParameters struct {
	Channels map[string]ChannelParameters
	Dummy    renderer.RenderTarget
	// Mask is set in ModeMask when at least one channel is published.
	Mask *MaskRecord
}

// Stats are cumulative effect counters.
type Stats struct {
	Frames uint64
	// Renders counts identity renders, Skipped counts channels whose map was reused.
	Renders uint64
	Skipped uint64
	// FrameRenders is the number of identity renders of the last frame.
	FrameRenders int
	Channels     int
	Targets      int
}

type memberKey struct {
	id          uint32
	revision    uint64
	screen      common.Bounds
	priority    float64
	hasPriority bool
}

// channelSnapshot is what a channel's map was last rendered from.
type channelSnapshot struct {
	members  []memberKey
	bounds   common.Bounds
	width    int
	height   int
	viewport viewport.Viewport
}

func newChannelSnapshot(members []Member, bounds common.Bounds, width, height int, vp viewport.Viewport) channelSnapshot {
	s := channelSnapshot{
		members:  make([]memberKey, len(members)),
		bounds:   bounds,
		width:    width,
		height:   height,
		viewport: vp,
	}
	for i, m := range members {
		s.members[i] = memberKey{
			id:          m.Item.ID(),
			revision:    m.Revision,
			screen:      m.ScreenBounds,
			priority:    m.Priority,
			hasPriority: m.HasPriority,
		}
	}
	return s
}

// dirty reports whether a map rendered from s is stale for next.
func (s channelSnapshot) dirty(next channelSnapshot) bool {
	if s.viewport == nil || !next.viewport.Equal(s.viewport) {
		return true
	}
	if s.bounds != next.bounds || s.width != next.width || s.height != next.height {
		return true
	}
	return !slices.Equal(s.members, next.members)
}

type channel struct {
	id   string
	pass IdentityPass

	members  []Member
	origin   [2]float64
	system   viewport.CoordinateSystem
	mini     *MiniViewport
	snapshot channelSnapshot
	rendered bool
	good     *ChannelParameters
	missing  int
}

type effect struct {
	mu *sync.Mutex

	label          string
	mode           Mode
	renderer       renderer.Renderer
	downscale      int
	fixedWidth     int
	fixedHeight    int
	policy         BoundsPolicy
	retention      int
	maxScale       float64
	defaultChannel string

	channels     map[string]*channel
	published    ModuleParameters
	prepared     bool
	closed       bool
	lastViewport viewport.Viewport
	filter       func(drawable.Drawable) bool
	stats        Stats
}

// Effect is the per-frame occlusion controller. PreRender partitions the frame's items into
// channels, renders the identity maps that went stale and publishes them; the main pass then
// reads ModuleParameters and ShadingParameters.
type Effect interface {
	// Label returns the effect label.
	Label() string

	// Mode returns the effect mode.
	Mode() Mode

	// PreRender runs discovery, partitioning, provisioning, bounds resolution, change detection,
	// identity rendering and publishing for one frame. Recoverable problems are logged and leave
	// the affected channel disabled.
	//
	// Parameters:
	//   - in: the frame inputs
	//
	// Returns:
	//   - error: ErrEffectClosed after Close
	PreRender(in FrameInputs) error

	// ModuleParameters returns the state published by the last PreRender.
	//
	// Returns:
	//   - ModuleParameters: a copy of the published state
	//   - error: ErrNotPrepared before the first PreRender or after Cleanup
	ModuleParameters() (ModuleParameters, error)

	// ShadingParameters resolves an item's role for this effect and the parameters of that role.
	//
	// Parameters:
	//   - item: the item being drawn
	//   - pass: the draw the parameters are for
	//
	// Returns:
	//   - shading.Parameters: the parameters, RoleNone for items the effect does not touch or the
	//     last frame's layer filter dropped
	ShadingParameters(item drawable.Drawable, pass Pass) shading.Parameters

	// Channels returns the identifiers of the channels that own an identity pass, sorted.
	Channels() []string

	// Stats returns the effect counters.
	Stats() Stats

	// Cleanup releases every identity pass and resets the effect to its initial state.
	// It is safe to call at any time, including before the first PreRender.
	Cleanup()

	// Close runs Cleanup and rejects every later PreRender.
	Close()
}

var _ Effect = &effect{}

// NewEffect creates an occlusion effect drawing through r.
//
// Parameters:
//   - r: the renderer the identity maps are created on
//   - options: functional options to configure the effect
//
// Returns:
//   - Effect: the new effect
//   - error: an error if r is nil
func NewEffect(r renderer.Renderer, options ...EffectBuilderOption) (Effect, error) {
	if r == nil {
		return nil, fmt.Errorf("occlusion: a renderer is required")
	}
	e := &effect{
		mu:             &sync.Mutex{},
		mode:           ModeCollision,
		renderer:       r,
		downscale:      DefaultDownscale,
		policy:         BoundsFullViewport,
		maxScale:       DefaultMaxScale,
		defaultChannel: drawable.DefaultChannel,
		channels:       make(map[string]*channel),
	}
	for _, option := range options {
		option(e)
	}
	if e.mode == ModeMask && e.fixedWidth == 0 {
		e.fixedWidth, e.fixedHeight = DefaultMaskSize, DefaultMaskSize
	}
	if e.label == "" {
		e.label = e.mode.String()
	}
	e.published = ModuleParameters{Channels: map[string]ChannelParameters{}, Dummy: r.DummyTarget()}
	return e, nil
}

func (e *effect) Label() string {
	return e.label
}

func (e *effect) Mode() Mode {
	return e.mode
}

func (e *effect) PreRender(in FrameInputs) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEffectClosed
	}
	log := common.Logger().With("effect", e.label)
	e.stats.Frames++
	e.stats.FrameRenders = 0

	var vp viewport.Viewport
	if len(in.Viewports) > 0 {
		vp = in.Viewports[0]
	}
	if len(in.Viewports) > 1 {
		log.Warn("more than one viewport; occlusion uses the first", "viewports", len(in.Viewports))
	}

	e.filter = in.LayerFilter
	groups := map[string][]drawable.Drawable{}
	if vp != nil {
		groups = e.partition(in.Items)
	} else {
		log.Warn("no active viewport; occlusion disabled for this frame")
	}

	for id, ch := range e.channels {
		if _, ok := groups[id]; ok {
			continue
		}
		ch.missing++
		if ch.missing > e.retention {
			e.retire(id)
		}
	}

	width, height := e.targetSize(in.CanvasWidth, in.CanvasHeight)
	opts := PassOptions{Viewport: vp, LayerFilter: in.LayerFilter, OnViewActivate: in.OnViewActivate}
	published := make(map[string]ChannelParameters, len(groups))
	for _, id := range slices.Sorted(maps.Keys(groups)) {
		ch, err := e.provision(id, width, height)
		if err != nil {
			log.Warn("identity pass unavailable; channel not occluded", "channel", id, "error", err)
			published[id] = e.disabledParameters(id, nil)
			continue
		}
		ch.missing = 0
		published[id] = e.resolveChannel(ch, groups[id], vp, width, height, opts)
	}

	if e.lastViewport != nil && vp != nil && !vp.Equal(e.lastViewport) {
		log.Debug("viewport changed", "viewport", vp.ID())
	}
	e.lastViewport = vp
	e.published = ModuleParameters{
		Channels: published,
		Dummy:    e.renderer.DummyTarget(),
		Mask:     e.maskRecord(published),
	}
	e.prepared = true
	e.stats.Channels = len(published)
	e.stats.Targets = len(e.channels)
	e.warnMissingChannels(in.Items, log)
	return nil
}

// partition groups the eligible items by channel, keeping their input order.
func (e *effect) partition(items []drawable.Drawable) map[string][]drawable.Drawable {
	groups := map[string][]drawable.Drawable{}
	for _, item := range items {
		if item == nil || !item.Visible() || !item.Enabled() || !e.accepts(item) {
			continue
		}
		var id string
		switch e.mode {
		case ModeMask:
			if item.Operation() != drawable.OperationMask {
				continue
			}
			id = item.MaskChannel()
		default:
			if !item.Collides() {
				continue
			}
			id = item.Channel()
		}
		id = common.Coalesce(id, e.defaultChannel)
		groups[id] = append(groups[id], item)
	}
	return groups
}

func (e *effect) provision(id string, width, height int) (*channel, error) {
	if ch, ok := e.channels[id]; ok {
		return ch, nil
	}
	pass, err := NewIdentityPass(e.renderer,
		WithPassLabel(e.label+"/"+id),
		WithPassSize(width, height),
		WithPassDepthTest(e.mode == ModeCollision),
	)
	if err != nil {
		return nil, err
	}
	ch := &channel{id: id, pass: pass}
	e.channels[id] = ch
	return ch, nil
}

// resolveChannel refreshes a channel's members, renders its map when stale and returns what to publish.
func (e *effect) resolveChannel(ch *channel, items []drawable.Drawable, vp viewport.Viewport, width, height int, opts PassOptions) ChannelParameters {
	log := common.Logger().With("effect", e.label, "channel", ch.id)

	ch.members = make([]Member, len(items))
	for i, item := range items {
		ch.members[i] = NewMember(item, vp)
	}
	placement := items[0].Placement()
	ch.origin, ch.system = placement.Origin, placement.System

	if err := ch.pass.Resize(width, height); err != nil {
		log.Warn("identity target resize failed; channel not occluded", "error", err)
		ch.rendered = false
		return e.disabledParameters(ch.id, ch)
	}

	bounds := ComputeChannelBounds(ch.members, vp, e.policy)
	mini, err := BuildMiniViewport(bounds, vp, width, height, e.maxScale)
	if err != nil {
		log.Warn("cannot occlude on this projection", "family", vp.Family().String(), "error", err)
		ch.rendered = false
		return e.disabledParameters(ch.id, ch)
	}
	if mini == nil {
		log.Debug("degenerate channel bounds; render skipped", "bounds", bounds)
		if ch.good != nil {
			return *ch.good
		}
		return e.disabledParameters(ch.id, ch)
	}

	snap := newChannelSnapshot(ch.members, bounds, width, height, vp)
	if !ch.rendered || ch.snapshot.dirty(snap) {
		if err := ch.pass.Render(ch.members, mini, opts); err != nil {
			log.Warn("identity render failed; channel not occluded", "error", err)
			ch.rendered = false
			return e.disabledParameters(ch.id, ch)
		}
		ch.rendered = true
		ch.snapshot = snap
		ch.mini = mini
		e.stats.Renders++
		e.stats.FrameRenders++
		log.Debug("identity map rendered", "members", len(ch.members))
	} else {
		e.stats.Skipped++
		log.Debug("identity map reused", "members", len(ch.members))
	}

	params := ChannelParameters{
		Channel:          ch.id,
		Enabled:          true,
		Target:           ch.pass.Target(),
		Width:            width,
		Height:           height,
		Bounds:           ch.mini.WorldBounds(),
		TextureBounds:    ch.mini.TextureBounds(),
		TexelMatrix:      ch.mini.TexelMatrix(),
		CoordinateOrigin: ch.origin,
		CoordinateSystem: ch.system,
	}
	ch.good = &params
	return params
}

func (e *effect) disabledParameters(id string, ch *channel) ChannelParameters {
	params := ChannelParameters{
		Channel: id,
		Target:  e.renderer.DummyTarget(),
		Width:   1,
		Height:  1,
	}
	if ch != nil {
		params.CoordinateOrigin, params.CoordinateSystem = ch.origin, ch.system
		ch.good = nil
	}
	return params
}

func (e *effect) maskRecord(published map[string]ChannelParameters) *MaskRecord {
	if e.mode != ModeMask {
		return nil
	}
	var rec *MaskRecord
	for _, id := range slices.Sorted(maps.Keys(published)) {
		p := published[id]
		if !p.Enabled {
			continue
		}
		if rec == nil {
			rec = &MaskRecord{CoordinateOrigin: p.CoordinateOrigin, CoordinateSystem: p.CoordinateSystem}
		}
		rec.Bounds = rec.Bounds.Union(p.Bounds)
	}
	return rec
}

// warnMissingChannels reports consumers whose channel has nothing published this frame.
func (e *effect) warnMissingChannels(items []drawable.Drawable, log *slog.Logger) {
	if e.mode != ModeMask {
		return
	}
	seen := map[string]bool{}
	for _, item := range items {
		if item == nil || !item.Visible() || item.Operation() != drawable.OperationDraw {
			continue
		}
		id := item.MaskChannel()
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := e.published.Channels[id]; !ok {
			log.Warn("items masked by a channel with no mask sources; drawn unmasked", "channel", id)
		}
	}
}

// targetSize returns the identity map size for a canvas.
func (e *effect) targetSize(canvasWidth, canvasHeight int) (int, int) {
	if e.fixedWidth > 0 && e.fixedHeight > 0 {
		return e.fixedWidth, e.fixedHeight
	}
	return downscaled(canvasWidth, e.downscale), downscaled(canvasHeight, e.downscale)
}

// downscaled divides a canvas dimension, rounding up to an even size of at least 2.
func downscaled(size, factor int) int {
	if factor < 1 {
		factor = 1
	}
	n := (size + factor - 1) / factor
	if n%2 == 1 {
		n++
	}
	return max(n, 2)
}

func (e *effect) retire(id string) {
	ch := e.channels[id]
	delete(e.channels, id)
	if ch == nil || ch.pass.Released() {
		return
	}
	if err := ch.pass.Release(); err != nil {
		common.Logger().Warn("identity pass release failed", "effect", e.label, "channel", id, "error", err)
	}
}

func (e *effect) ModuleParameters() (ModuleParameters, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.prepared {
		common.Logger().Error("module parameters read before PreRender", "effect", e.label)
		return ModuleParameters{}, ErrNotPrepared
	}
	out := e.published
	out.Channels = maps.Clone(e.published.Channels)
	if e.published.Mask != nil {
		rec := *e.published.Mask
		out.Mask = &rec
	}
	return out, nil
}

func (e *effect) ShadingParameters(item drawable.Drawable, pass Pass) shading.Parameters {
	e.mu.Lock()
	defer e.mu.Unlock()

	dummy := e.renderer.DummyTarget()
	none := shading.Parameters{Role: shading.RoleNone, Target: dummy}
	if item == nil || !item.Enabled() || !e.accepts(item) {
		return none
	}

	switch e.mode {
	case ModeMask:
		if item.Operation() == drawable.OperationMask {
			return shading.Parameters{
				Role:         shading.RoleSource,
				Kind:         shading.KindMask,
				Channel:      common.Coalesce(item.MaskChannel(), e.defaultChannel),
				DrawIdentity: true,
				Depth:        shading.UniformDepth,
				Target:       dummy,
				Identity:     item.IdentityColor(),
			}
		}
		if item.MaskChannel() == "" || pass == PassIdentity {
			return none
		}
		return e.consumerParameters(item, item.MaskChannel(), shading.KindMask)
	default:
		if !item.Collides() {
			return none
		}
		id := common.Coalesce(item.Channel(), e.defaultChannel)
		if pass == PassIdentity {
			p, ok := item.Priority()
			return shading.Parameters{
				Role:         shading.RoleSource,
				Kind:         shading.KindCollision,
				Channel:      id,
				DrawIdentity: true,
				Depth:        shading.EncodePriorityDepth(p, ok),
				Target:       dummy,
				Identity:     item.IdentityColor(),
			}
		}
		return e.consumerParameters(item, id, shading.KindCollision)
	}
}

// accepts reports whether the last frame's layer filter keeps item. Filtered items take no part
// in occlusion and are drawn unoccluded.
func (e *effect) accepts(item drawable.Drawable) bool {
	return e.filter == nil || e.filter(item)
}

func (e *effect) consumerParameters(item drawable.Drawable, id string, kind shading.Kind) shading.Parameters {
	params := shading.Parameters{
		Role:           shading.RoleConsumer,
		Kind:           kind,
		Channel:        id,
		Target:         e.renderer.DummyTarget(),
		Identity:       item.IdentityColor(),
		SampleAtAnchor: kind == shading.KindCollision,
		CoverageOnly:   kind == shading.KindMask,
	}
	ch, ok := e.published.Channels[id]
	if !ok || !ch.Enabled || ch.Target == nil {
		return params
	}
	params.Enabled = true
	params.Target = ch.Target
	params.TexelMatrix = ch.TexelMatrix
	params.Bounds = ch.Bounds
	params.CoordinateOrigin = ch.CoordinateOrigin
	params.CoordinateSystem = ch.CoordinateSystem
	return params
}

func (e *effect) Channels() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Sorted(maps.Keys(e.channels))
}

func (e *effect) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *effect) Cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cleanup()
}

func (e *effect) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cleanup()
	e.closed = true
}

func (e *effect) cleanup() {
	for id := range e.channels {
		e.retire(id)
	}
	e.channels = make(map[string]*channel)
	e.published = ModuleParameters{Channels: map[string]ChannelParameters{}, Dummy: e.renderer.DummyTarget()}
	e.prepared = false
	e.lastViewport = nil
	e.filter = nil
	e.stats.Channels, e.stats.Targets = 0, 0
}
