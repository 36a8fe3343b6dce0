package capture

import "fmt"

// FormatElapsed は経過秒数を MM:SS 形式に整形する。
// 分は60分を超えても繰り上げず、そのまま表示する。
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
