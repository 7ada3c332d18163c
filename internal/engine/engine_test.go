package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/knowledge-engine/recommender/internal/catalog"
	"github.com/knowledge-engine/recommender/internal/config"
	"github.com/knowledge-engine/recommender/internal/engine"
)

// Mocks

type MockSource struct {
	mock.Mock
}

func (m *MockSource) Products(ctx context.Context) ([]catalog.RawProduct, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.RawProduct), args.Error(1)
}

func (m *MockSource) Name() string {
	return "mock"
}

func str(s string) *string { return &s }

func shoeRows() []catalog.RawProduct {
	return []catalog.RawProduct{
		{Name: str("Red Shoe"), Brand: str("Acme"), Tags: str("red leather shoe running")},
		{Name: str("Blue Shoe"), Brand: str("Acme"), Tags: str("blue leather shoe running")},
		{Name: str("Red Hat"), Brand: str("Hatters"), Tags: str("red wool hat")},
	}
}

func newEngine(t *testing.T, src catalog.Source, eager bool) *engine.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Index.EagerBuild = eager
	logger := logrus.New().WithField("test", "engine")

	eng, err := engine.NewEngine(cfg, logger, src)
	require.NoError(t, err)
	return eng
}

func itemNames(items []engine.Recommendation) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Name
	}
	return out
}

func TestNewEngine_RequiresSource(t *testing.T) {
	_, err := engine.NewEngine(config.Default(), logrus.New().WithField("test", "engine"), nil)
	assert.Error(t, err)
}

func TestEngine_Build(t *testing.T) {
	src := new(MockSource)
	src.On("Products", mock.Anything).Return(shoeRows(), nil).Once()
	eng := newEngine(t, src, true)

	assert.False(t, eng.IsReady())
	require.NoError(t, eng.Build(context.Background()))
	assert.True(t, eng.IsReady())

	// Build is one-shot
	require.NoError(t, eng.Build(context.Background()))
	src.AssertExpectations(t)

	st := eng.Status()
	assert.True(t, st.Ready)
	assert.Equal(t, 3, st.Products)
	assert.Equal(t, 7, st.Vocabulary)
	assert.Equal(t, int64(1), st.Builds)
	assert.NotEmpty(t, st.BuildID)
	assert.Empty(t, st.LastError)
}

func TestEngine_ConcurrentBuildLoadsOnce(t *testing.T) {
	src := new(MockSource)
	src.On("Products", mock.Anything).Return(shoeRows(), nil).Once()
	eng := newEngine(t, src, true)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, eng.Build(context.Background()))
		}()
	}
	wg.Wait()

	assert.True(t, eng.IsReady())
	src.AssertExpectations(t)
}

func TestEngine_CatalogUnavailable(t *testing.T) {
	src := new(MockSource)
	src.On("Products", mock.Anything).Return(nil, errors.New("no such file")).Once()
	eng := newEngine(t, src, true)

	err := eng.Build(context.Background())
	assert.ErrorIs(t, err, catalog.ErrCatalogUnavailable)
	assert.False(t, eng.IsReady())

	res := eng.Recommend(context.Background(), "Red Shoe", 5)
	assert.Equal(t, engine.StrategyNone, res.Strategy)
	assert.Empty(t, res.Items)
	assert.Empty(t, eng.RecommendByItem(context.Background(), "Red Shoe", 5))
	assert.Empty(t, eng.RecommendByText(context.Background(), "red", 5))

	st := eng.Status()
	assert.False(t, st.Ready)
	assert.Contains(t, st.LastError, "catalog unavailable")

	// The failed build is not retried by later Build calls
	require.NoError(t, eng.Build(context.Background()))
	src.AssertExpectations(t)
}

func TestEngine_EagerModeDoesNotBuildOnQuery(t *testing.T) {
	src := new(MockSource)
	eng := newEngine(t, src, true)

	res := eng.Recommend(context.Background(), "Red Shoe", 5)

	assert.Empty(t, res.Items)
	assert.False(t, eng.IsReady())
	src.AssertNotCalled(t, "Products", mock.Anything)
}

func TestEngine_LazyModeBuildsOnFirstQuery(t *testing.T) {
	src := new(MockSource)
	src.On("Products", mock.Anything).Return(shoeRows(), nil).Once()
	eng := newEngine(t, src, false)

	items := eng.RecommendByItem(context.Background(), "Red Shoe", 2)
	assert.Equal(t, []string{"Blue Shoe", "Red Hat"}, itemNames(items))
	assert.True(t, eng.IsReady())

	eng.RecommendByText(context.Background(), "wool", 2)
	src.AssertExpectations(t)
}

func TestEngine_RecommendDispatch(t *testing.T) {
	src := new(MockSource)
	src.On("Products", mock.Anything).Return(shoeRows(), nil)
	eng := newEngine(t, src, true)
	require.NoError(t, eng.Build(context.Background()))

	byName := eng.Recommend(context.Background(), "Red Shoe", 2)
	assert.Equal(t, engine.StrategyItem, byName.Strategy)
	assert.Equal(t, []string{"Blue Shoe", "Red Hat"}, itemNames(byName.Items))
	assert.Equal(t, "Acme", byName.Items[0].Brand)

	// Not an exact name, so it falls back to text search
	byText := eng.Recommend(context.Background(), "red shoe", 5)
	assert.Equal(t, engine.StrategyText, byText.Strategy)
	require.NotEmpty(t, byText.Items)
	assert.Equal(t, "Red Shoe", byText.Items[0].Name)

	noMatch := eng.Recommend(context.Background(), "velvet gloves", 5)
	assert.Equal(t, engine.StrategyText, noMatch.Strategy)
	assert.Empty(t, noMatch.Items)
}

func TestEngine_RecommendByText(t *testing.T) {
	src := new(MockSource)
	src.On("Products", mock.Anything).Return(shoeRows(), nil)
	eng := newEngine(t, src, true)
	require.NoError(t, eng.Build(context.Background()))

	items := eng.RecommendByText(context.Background(), "wool hat", 5)

	require.Len(t, items, 1)
	assert.Equal(t, "Red Hat", items[0].Name)
	assert.Greater(t, items[0].Score, 0.0)
}

func TestEngine_RecommendDropsDuplicateNames(t *testing.T) {
	src := new(MockSource)
	src.On("Products", mock.Anything).Return([]catalog.RawProduct{
		{Name: str("Lipstick"), Tags: str("matte lipstick")},
		{Name: str("Lipstick"), Tags: str("glossy lipstick")},
		{Name: str("Gloss"), Tags: str("glossy lip gloss")},
	}, nil)
	eng := newEngine(t, src, true)
	require.NoError(t, eng.Build(context.Background()))

	assert.Len(t, eng.RecommendByText(context.Background(), "lipstick", 5), 2)

	res := eng.Recommend(context.Background(), "lipstick", 5)
	assert.Equal(t, []string{"Lipstick"}, itemNames(res.Items))
}

func TestEngine_ClampTopN(t *testing.T) {
	eng := newEngine(t, new(MockSource), true)

	assert.Equal(t, 5, eng.ClampTopN(0))
	assert.Equal(t, 5, eng.ClampTopN(-3))
	assert.Equal(t, 1, eng.ClampTopN(1))
	assert.Equal(t, 7, eng.ClampTopN(7))
	assert.Equal(t, 10, eng.ClampTopN(500))
}

func TestEngine_RebuildFailureKeepsPreviousIndex(t *testing.T) {
	src := new(MockSource)
	src.On("Products", mock.Anything).Return(shoeRows(), nil).Once()
	src.On("Products", mock.Anything).Return(nil, errors.New("connection refused")).Once()
	eng := newEngine(t, src, true)

	require.NoError(t, eng.Build(context.Background()))
	before := eng.Status().BuildID

	err := eng.Rebuild(context.Background())
	assert.ErrorIs(t, err, catalog.ErrCatalogUnavailable)

	st := eng.Status()
	assert.True(t, st.Ready)
	assert.Equal(t, before, st.BuildID)
	assert.Contains(t, st.LastError, "connection refused")
	assert.Len(t, eng.RecommendByItem(context.Background(), "Red Shoe", 5), 2)
	src.AssertExpectations(t)
}

func TestEngine_RebuildPublishesNewCatalog(t *testing.T) {
	src := new(MockSource)
	src.On("Products", mock.Anything).Return(shoeRows(), nil).Once()
	src.On("Products", mock.Anything).Return(append(shoeRows(),
		catalog.RawProduct{Name: str("Green Shoe"), Tags: str("green leather shoe running")},
	), nil).Once()
	eng := newEngine(t, src, true)

	require.NoError(t, eng.Build(context.Background()))
	first := eng.Status()

	require.NoError(t, eng.Rebuild(context.Background()))
	second := eng.Status()

	assert.NotEqual(t, first.BuildID, second.BuildID)
	assert.Equal(t, 4, second.Products)
	assert.Equal(t, int64(2), second.Builds)
	assert.Contains(t, itemNames(eng.RecommendByItem(context.Background(), "Red Shoe", 3)), "Green Shoe")
	src.AssertExpectations(t)
}

func TestEngine_QueriesDuringRebuild(t *testing.T) {
	src := new(MockSource)
	src.On("Products", mock.Anything).Return(shoeRows(), nil)
	eng := newEngine(t, src, true)
	require.NoError(t, eng.Build(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, eng.Rebuild(context.Background()))
		}()
		go func() {
			defer wg.Done()
			items := eng.RecommendByItem(context.Background(), "Red Shoe", 2)
			assert.Equal(t, []string{"Blue Shoe", "Red Hat"}, itemNames(items))
		}()
	}
	wg.Wait()

	assert.True(t, eng.IsReady())
}

func TestEngine_LazyBuildSurvivesCancelledFirstQuery(t *testing.T) {
	src := new(MockSource)
	src.On("Products", mock.Anything).Return(shoeRows(), nil).Once()
	eng := newEngine(t, src, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng.Recommend(ctx, "Red Shoe", 2)

	require.Eventually(t, eng.IsReady, 2*time.Second, 10*time.Millisecond)

	res := eng.Recommend(context.Background(), "Red Shoe", 2)
	assert.Equal(t, engine.StrategyItem, res.Strategy)
	assert.Equal(t, []string{"Blue Shoe", "Red Hat"}, itemNames(res.Items))
	assert.Empty(t, eng.Status().LastError)
	src.AssertExpectations(t)
}

func TestEngine_RebuildOutlivesInitiatingCaller(t *testing.T) {
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	var loadErr error
	var loadMu sync.Mutex

	src := new(MockSource)
	src.On("Products", mock.Anything).Run(func(args mock.Arguments) {
		started <- struct{}{}
		<-release
		loadMu.Lock()
		loadErr = args.Get(0).(context.Context).Err()
		loadMu.Unlock()
	}).Return(shoeRows(), nil)
	eng := newEngine(t, src, true)

	initiatorCtx, cancelInitiator := context.WithCancel(context.Background())
	initiatorErr := make(chan error, 1)
	go func() {
		initiatorErr <- eng.Rebuild(initiatorCtx)
	}()
	<-started

	joinedErr := make(chan error, 1)
	go func() {
		joinedErr <- eng.Rebuild(context.Background())
	}()

	// The initiator disconnects while the load is still running
	cancelInitiator()
	assert.ErrorIs(t, <-initiatorErr, context.Canceled)

	close(release)
	assert.NoError(t, <-joinedErr)
	assert.True(t, eng.IsReady())
	assert.Empty(t, eng.Status().LastError)

	loadMu.Lock()
	defer loadMu.Unlock()
	assert.NoError(t, loadErr, "catalog load must not see the caller's cancellation")
}
