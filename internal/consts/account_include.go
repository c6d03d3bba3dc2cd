package consts

// GrpcAccountInclude 用于 Geyser gRPC 区块订阅过滤器。
// 只订阅与 pipeline 解码器相关的 Program，降低无关区块流量。
var GrpcAccountInclude = []string{
	TokenProgramStr,
	TokenProgram2022Str,

	PumpFunProgramStr,
}
