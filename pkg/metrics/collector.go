package metrics

import (
	"time"

	"github.com/cuemby/pgbackup/pkg/catalogue"
	"github.com/cuemby/pgbackup/pkg/config"
)

// Collector periodically refreshes the catalogue-derived gauges
// (BackupsTotal, ServersTotal, ServersOnline) so scrapes between backup
// runs still reflect current state.
type Collector struct {
	cat     *catalogue.Catalogue
	servers []*config.Server
	stopCh  chan struct{}
}

// NewCollector builds a Collector over cat and the configured servers.
func NewCollector(cat *catalogue.Catalogue, servers []*config.Server) *Collector {
	return &Collector{
		cat:     cat,
		servers: servers,
		stopCh:  make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ServersTotal.Set(float64(len(c.servers)))

	var online int
	for _, s := range c.servers {
		if s.Online() {
			online++
		}
	}
	ServersOnline.Set(float64(online))

	for _, s := range c.servers {
		c.collectBackupCounts(s.Name)
	}
}

func (c *Collector) collectBackupCounts(server string) {
	backups, err := c.cat.ListBackups(server)
	if err != nil {
		return
	}

	counts := make(map[string]int)
	for _, b := range backups {
		counts[string(b.Status)]++
	}
	for status, count := range counts {
		BackupsTotal.WithLabelValues(server, status).Set(float64(count))
	}
}
