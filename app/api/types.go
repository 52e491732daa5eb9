package api

import (
	"github.com/lysyi3m/rss-monitor/app/database"
	"github.com/lysyi3m/rss-monitor/app/monitor"
)

type MonitorInterface interface {
	SubmitFeed(f *database.Feed)
	QueueDepth() int
	StatsSnapshot() (tier1, tier2 monitor.Counter)
}

var _ MonitorInterface = (*monitor.Monitor)(nil)

type Handler struct {
	feedRepo database.FeedRepository
	subRepo  database.SubRepository
	monitor  MonitorInterface
}
