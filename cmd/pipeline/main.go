package main

import (
	"flag"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"ix-pipeline-sol/internal/config"
	grpcstream "ix-pipeline-sol/internal/logic/grpc"
	"ix-pipeline-sol/internal/plugin"
	"ix-pipeline-sol/internal/svc"
	"ix-pipeline-sol/internal/types"
	"ix-pipeline-sol/pkg/logger"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	zerosvc "github.com/zeromicro/go-zero/core/service"
)

var configFile = flag.String("f", "etc/pipeline.yaml", "the config file")

func main() {
	defer func() {
		if r := recover(); r != nil {
			logx.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
		}
	}()

	flag.Parse()

	var c config.Config
	conf.MustLoad(*configFile, &c)

	logger.Init(c.LogConf.ToLogOption())
	defer logger.Sync()

	serviceContext, err := svc.NewServiceContext(c)
	if err != nil {
		panic(err)
	}
	defer serviceContext.Close()

	trackedMint, err := types.TryPubkeyFromBase58(c.PipelineConf.TrackedMint)
	if err != nil {
		logx.Errorf("tracked_mint 非法: %q, err=%v", c.PipelineConf.TrackedMint, err)
		panic(err)
	}

	plugins := []plugin.Plugin{
		plugin.NewPumpfunTrackingPlugin(
			trackedMint,
			serviceContext.Producer,
			c.KafkaProducerConf.Topics.Trade,
			time.Duration(c.PipelineConf.EventSendTimeoutMs)*time.Millisecond,
			serviceContext.Metrics,
		),
	}

	sg := zerosvc.NewServiceGroup()

	var slotChecker *grpcstream.SlotChecker
	if c.RpcEndpoint != "" {
		slotChecker = grpcstream.NewSlotChecker(c.RpcEndpoint, serviceContext.Progress)
		sg.Add(slotChecker)
	}

	blockChan := make(chan *pb.SubscribeUpdateBlock, 200)
	defer close(blockChan)

	streamService, err := grpcstream.NewGrpcStreamManager(c.GrpcConf, blockChan)
	if err != nil {
		panic(err)
	}
	sg.Add(streamService)
	sg.Add(grpcstream.NewBlockProcessor(serviceContext, blockChan, plugins, slotChecker))

	logx.Infof("Starting instruction pipeline service")

	// 启动服务
	sg.Start()

	// 等待退出信号
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logx.Info("Shutting down services...")
	sg.Stop()
}
