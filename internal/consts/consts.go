package consts

import "runtime"

// MaxInstructionStackDepth 是 Solana 运行时对指令调用栈深度的硬上限。
// stack height 为 1-based，合法范围 [1, MaxInstructionStackDepth]；
// 超出该范围说明输入违反协议约定，属于致命错误而非可恢复错误。
const MaxInstructionStackDepth = 5

// CpuCount 表示逻辑 CPU 核心数，用于控制并发任务调度上限
var CpuCount = runtime.NumCPU()
