package celestial

import (
	"fmt"
	"strings"
)

// MoonPhase фаза луны; цикл из 8 значений, один шаг в игровые сутки.
type MoonPhase int

const (
	Full MoonPhase = iota
	Waning3_4
	Waning1_2
	Waning1_4
	New
	Waxing1_4
	Waxing1_2
	Waxing3_4
)

// MoonPhaseCount длина лунного цикла в сутках.
const MoonPhaseCount = 8

var moonPhases = [MoonPhaseCount]MoonPhase{
	Full, Waning3_4, Waning1_2, Waning1_4,
	New, Waxing1_4, Waxing1_2, Waxing3_4,
}

var moonPhaseNames = [MoonPhaseCount]string{
	"FULL", "WANING3_4", "WANING1_2", "WANING1_4",
	"NEW", "WAXING1_4", "WAXING1_2", "WAXING3_4",
}

// MoonPhaseForDay возвращает фазу для номера суток.
// Отрицательные сутки (до первого тика) отображаются по неотрицательному модулю.
func MoonPhaseForDay(day int64) MoonPhase {
	idx := day % MoonPhaseCount
	if idx < 0 {
		idx += MoonPhaseCount
	}
	return moonPhases[idx]
}

func (p MoonPhase) String() string {
	if p < 0 || int(p) >= MoonPhaseCount {
		return "UNKNOWN"
	}
	return moonPhaseNames[p]
}

// ParseMoonPhase разбирает имя фазы (регистр не важен).
func ParseMoonPhase(s string) (MoonPhase, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range moonPhaseNames {
		if n == name {
			return MoonPhase(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMoonPhase, s)
}

// MarshalText реализует encoding.TextMarshaler (JSON/YAML выводят имя фазы).
func (p MoonPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler.
func (p *MoonPhase) UnmarshalText(text []byte) error {
	v, err := ParseMoonPhase(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
