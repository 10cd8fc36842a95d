package banner

import (
	"github.com/charmbracelet/lipgloss"
)

var style = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#04B575")).
	Bold(true)

func GetString() string {
	ascii := `
   _____ ____    __    ____  __  ____   ____ ______
  / ___// __ \  / /   / __ \/ / / / /  / ___// ____/
  \__ \/ / / / / /   / /_/ / / / / /   \__ \/ __/
 ___/ / /_/ / / /___/ ____/ /_/ / /______/ / /___
/____/\___\_\/_____/_/    \____/_____/____/_____/
                             SQL workload monitor`

	return "\n" + style.Render(ascii) + "\n"
}
