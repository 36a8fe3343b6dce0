package reaction

import (
	"sync"

	"github.com/hitoshi/murmur/internal/model"
)

// FlagState は通報ダイアログの状態を表す。
type FlagState string

const (
	FlagClosed FlagState = "closed"
	FlagOpen   FlagState = "open"
	// FlagFlagged は通報済みの終端状態。利用者による取り消しはできない。
	FlagFlagged FlagState = "flagged"
)

// Outcome はダイアログが閉じられた理由を表す。
type Outcome string

const (
	// OutcomeCancelled はキャンセルボタンによる明示的な取り消し。
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeConfirmed は通報の明示的な確定。
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeUnspecified は外側のクリックなど、結果を伴わない閉じ方。
	OutcomeUnspecified Outcome = "unspecified"
)

// ParseOutcome は文字列をOutcomeに変換する。未知の値はOutcomeUnspecifiedになる。
func ParseOutcome(s string) Outcome {
	switch Outcome(s) {
	case OutcomeCancelled, OutcomeConfirmed:
		return Outcome(s)
	default:
		return OutcomeUnspecified
	}
}

// FlagWorkflow はカード1枚分の通報ダイアログの状態機械。
//
//	Closed --Open--> Open --Dismiss(cancelled)--> Closed
//	Open --Dismiss(confirmed)--> Flagged
//	Open --Dismiss(unspecified)--> Flagged（implicitConfirmがfalseの場合はClosed）
//
// 一度Flaggedになると以後の操作はすべて拒否される。
type FlagWorkflow struct {
	implicitConfirm bool

	mu    sync.Mutex
	state FlagState
}

// NewFlagWorkflow はFlagWorkflowを生成する。
// flaggedがtrueの場合はFlagged状態から開始する。
// implicitConfirmがtrueの場合、結果を伴わないダイアログの閉じ方を通報の確定として扱う。
func NewFlagWorkflow(flagged, implicitConfirm bool) *FlagWorkflow {
	state := FlagClosed
	if flagged {
		state = FlagFlagged
	}
	return &FlagWorkflow{
		implicitConfirm: implicitConfirm,
		state:           state,
	}
}

// State は現在の状態を返す。
func (w *FlagWorkflow) State() FlagState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Flagged は通報済みかを返す。
func (w *FlagWorkflow) Flagged() bool {
	return w.State() == FlagFlagged
}

// DialogOpen はダイアログが開いているかを返す。
func (w *FlagWorkflow) DialogOpen() bool {
	return w.State() == FlagOpen
}

// Open は通報ダイアログを開く。Closed状態でのみ有効。
func (w *FlagWorkflow) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != FlagClosed {
		return model.NewPreconditionViolationError("open_flag_dialog", string(w.state))
	}
	w.state = FlagOpen
	return nil
}

// Dismiss はダイアログを閉じ、結果に応じて遷移した後の状態を返す。Open状態でのみ有効。
func (w *FlagWorkflow) Dismiss(outcome Outcome) (FlagState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != FlagOpen {
		return w.state, model.NewPreconditionViolationError("dismiss_flag_dialog", string(w.state))
	}

	switch {
	case outcome == OutcomeCancelled:
		w.state = FlagClosed
	case outcome == OutcomeConfirmed:
		w.state = FlagFlagged
	case w.implicitConfirm:
		w.state = FlagFlagged
	default:
		w.state = FlagClosed
	}
	return w.state, nil
}

// MarkFlagged はデータソースが通報済みと報告したカードをFlaggedにする。
// 開いているダイアログも閉じる。状態が変化した場合にtrueを返す。
func (w *FlagWorkflow) MarkFlagged() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == FlagFlagged {
		return false
	}
	w.state = FlagFlagged
	return true
}
