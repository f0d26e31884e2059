package sim

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// EpisodeStats collects per-episode rewards for summary reporting.
type EpisodeStats struct {
	rewards []float64
}

func NewEpisodeStats() *EpisodeStats {
	return &EpisodeStats{rewards: make([]float64, 0)}
}

func (s *EpisodeStats) Add(reward float64) {
	s.rewards = append(s.rewards, reward)
}

func (s *EpisodeStats) Episodes() int { return len(s.rewards) }

// Rewards returns the recorded rewards in episode order.
func (s *EpisodeStats) Rewards() []float64 { return s.rewards }

func (s *EpisodeStats) Mean() float64 {
	if len(s.rewards) == 0 {
		return 0
	}
	return stat.Mean(s.rewards, nil)
}

func (s *EpisodeStats) StdDev() float64 {
	if len(s.rewards) < 2 {
		return 0
	}
	return stat.StdDev(s.rewards, nil)
}

func (s *EpisodeStats) Summary() string {
	return fmt.Sprintf("episodes: %d, mean reward: %.3f, stddev: %.3f",
		s.Episodes(), s.Mean(), s.StdDev())
}

// SaveRewardPlot writes a reward-per-episode line plot to the given path.
func SaveRewardPlot(path, name string, rewards []float64) error {
	p := plot.New()
	p.Title.Text = "Episode reward"
	p.X.Label.Text = "Episode"
	p.Y.Label.Text = "Reward"

	points := make(plotter.XYs, len(rewards))
	for i, r := range rewards {
		points[i] = plotter.XY{X: float64(i), Y: r}
	}
	line, err := plotter.NewLine(points)
	if err != nil {
		return err
	}
	line.Color = plotutil.Color(0)
	p.Add(line)
	p.Legend.Add(name, line)

	return p.Save(8*vg.Inch, 8*vg.Inch, path)
}
