// Command raleighslsrv brings up one RaleighSL/FS runtime with the
// built-in object-type plugins registered: enough to prove
// Context/Dispatcher wiring end to end, not a full server.
package main

import (
	"flag"
	"net/http"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raleighsl/fs/device"
	"github.com/raleighsl/fs/fs"
	"github.com/raleighsl/fs/object"
	"github.com/raleighsl/fs/objects"
	"github.com/raleighsl/fs/rcfg"
	"github.com/raleighsl/fs/rlog"
)

var (
	ncores      = flag.Int("ncores", 1, "worker cores to spawn")
	metricsBind = flag.String("metrics-addr", "", "if set, serve /metrics on this address")
	compressDev = flag.Bool("compress", false, "LZ4-compress the backing device on sync")
)

func registry() *object.Registry {
	reg := object.NewRegistry()
	reg.Register(objects.NewCounter())
	reg.Register(objects.NewNumber())
	reg.Register(objects.NewDeque())
	reg.Register(objects.NewSset())
	reg.Register(objects.NewFlow())
	return reg
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := rcfg.DefaultConfig()
	conf.NCores = *ncores
	if err := conf.Validate(); err != nil {
		glog.Fatalf("raleighslsrv: invalid config: %v", err)
	}

	var dev device.Device = device.NewMemoryDevice()
	if *compressDev {
		dev = device.NewLZ4Device(dev)
	}

	reg := prometheus.NewRegistry()
	f, err := fs.Open(conf, registry(), fs.DefaultCacheCapacity, reg, dev)
	if err != nil {
		glog.Fatalf("raleighslsrv: fs.Open: %v", err)
	}
	defer f.Close()

	if *metricsBind != "" {
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsBind, nil); err != nil {
				glog.Errorf("raleighslsrv: metrics listener: %v", err)
			}
		}()
	}

	rlog.Infof("raleighslsrv: runtime up on %d core(s), device holds %s",
		conf.NCores, rlog.Humanize(dev.Used()))
	select {}
}
