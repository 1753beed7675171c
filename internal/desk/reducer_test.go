package desk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-desk/internal/order"
	"signal-desk/internal/pip"
	"signal-desk/internal/risk"
)

var defaultRisk = risk.Parameters{AccountBalance: 10000, RiskPercent: 1, Leverage: 100}

func TestReducer_ParseThenSize(t *testing.T) {
	r := NewReducer(nil)

	s := r.Apply(State{Stage: StageEmpty, Risk: defaultRisk}, TextEntered{Text: "Sell XAUUSD @1900-1895 SL:1880 Targets: 1870-1860-1850"})

	require.Equal(t, StageSized, s.Stage)
	require.NotNil(t, s.Instruction)
	assert.Equal(t, "XAUUSD", s.Instruction.Symbol)
	assert.Len(t, s.Markers, 5)
	assert.Equal(t, "50.00", s.Sizing.MaxPositionSizeText)
	require.NotNil(t, s.Draft)
	assert.Equal(t, order.TypeLimit, s.Draft.Type)
	assert.Equal(t, 50.0, s.Draft.Volume)
	assert.True(t, s.CanSubmit())
}

func TestReducer_DraftVolumeNeverExceedsDisplayedSize(t *testing.T) {
	calc := risk.NewCalculator(pip.NewTable(map[string]float64{"XAUUSD": 1}), 0, nil)
	r := NewReducer(calc)

	params := risk.Parameters{AccountBalance: 100, RiskPercent: 1, Leverage: 1}
	s := r.Apply(State{Risk: params}, TextEntered{Text: "Buy XAUUSD @1900 SL 1892"})

	require.Equal(t, StageSized, s.Stage)
	assert.Equal(t, 0.125, s.Sizing.MaxPositionSize)
	assert.Equal(t, "0.12", s.Sizing.MaxPositionSizeText)
	require.NotNil(t, s.Draft)
	assert.Equal(t, 0.12, s.Draft.Volume)
}

func TestReducer_WithoutStopStaysParsed(t *testing.T) {
	r := NewReducer(nil)

	s := r.Apply(State{Risk: defaultRisk}, TextEntered{Text: "Buy EURUSD @1.1250"})

	assert.Equal(t, StageParsed, s.Stage)
	assert.Nil(t, s.Draft)
	assert.False(t, s.CanSubmit())
	assert.Len(t, s.Markers, 1)
}

func TestReducer_BlankTextIsEmpty(t *testing.T) {
	r := NewReducer(nil)
	prev := r.Apply(State{Risk: defaultRisk}, TextEntered{Text: "Buy EURUSD @1.1250 SL 1.12"})

	s := r.Apply(prev, TextEntered{Text: "   "})

	assert.Equal(t, StageEmpty, s.Stage)
	assert.Nil(t, s.Instruction)
	assert.Empty(t, s.Markers)
	assert.Equal(t, defaultRisk, s.Risk)
}

func TestReducer_NewTextSupersedesPrevious(t *testing.T) {
	r := NewReducer(nil)
	first := r.Apply(State{Risk: defaultRisk}, TextEntered{Text: "Sell XAUUSD @1900 SL 1880 Targets: 1870-1860"})
	second := r.Apply(first, TextEntered{Text: "Buy EURUSD"})

	require.NotNil(t, second.Instruction)
	assert.Equal(t, "EURUSD", second.Instruction.Symbol)
	assert.Empty(t, second.Instruction.Targets)
	assert.Empty(t, second.Markers)

	assert.Equal(t, "XAUUSD", first.Instruction.Symbol, "previous state must stay untouched")
	assert.Len(t, first.Markers, 4)
}

func TestReducer_RiskChangeRecomputes(t *testing.T) {
	r := NewReducer(nil)
	s := r.Apply(State{Risk: defaultRisk}, TextEntered{Text: "Sell XAUUSD @1900 SL 1880"})
	require.Equal(t, "50.00", s.Sizing.MaxPositionSizeText)

	params := defaultRisk
	params.RiskPercent = 2
	s = r.Apply(s, RiskChanged{Params: params})

	assert.Equal(t, StageSized, s.Stage)
	assert.Equal(t, "100.00", s.Sizing.MaxPositionSizeText)
	assert.Equal(t, 100.0, s.Draft.Volume)
}

func TestReducer_RiskChangeWithoutInstruction(t *testing.T) {
	r := NewReducer(nil)
	s := r.Apply(State{Stage: StageEmpty}, RiskChanged{Params: defaultRisk})

	assert.Equal(t, StageEmpty, s.Stage)
	assert.Equal(t, defaultRisk, s.Risk)
}

func TestReducer_SubmissionOutcomes(t *testing.T) {
	r := NewReducer(nil)
	sized := r.Apply(State{Risk: defaultRisk}, TextEntered{Text: "Sell XAUUSD @1900 SL 1880"})

	submitted := r.Apply(sized, OrderSubmitted{OrderID: "abc"})
	assert.Equal(t, StageSubmitted, submitted.Stage)
	assert.Equal(t, "abc", submitted.OrderID)

	failed := r.Apply(sized, OrderFailed{Err: errors.New("gateway down")})
	assert.Equal(t, StageFailed, failed.Stage)
	assert.Equal(t, "gateway down", failed.Error)
	assert.NotNil(t, failed.Instruction)

	parsedOnly := r.Apply(State{Risk: defaultRisk}, TextEntered{Text: "Buy EURUSD"})
	assert.Equal(t, parsedOnly, r.Apply(parsedOnly, OrderSubmitted{OrderID: "x"}))
}
