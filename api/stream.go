package api

import "time"

// MsgType is a message type for streaming progress
type MsgType string

// Streaming message type constants
const (
	CompileOutputMsg  MsgType = "compile_output"
	FinishCompileMsg  MsgType = "compile_finish"
	StartTestMsg      MsgType = "test_start"
	WorkerBusyMsg     MsgType = "worker_busy"
	WorkerIdleMsg     MsgType = "worker_idle"
	FinishTestMsg     MsgType = "test_finish"
	FinishAllTestsMsg MsgType = "run_finish"
)

// Text size constraints for streaming
const (
	MaxStreamTextHeight = 40
	MaxStreamTextWidth  = 80
)

// Header is the common header for all streaming messages
type Header struct {
	RunUuid string  `json:"run_uuid"`
	MsgType MsgType `json:"msg_type"`
	SentAt  string  `json:"sent_at"`
}

type CompileOutput struct {
	Header
	Text string `json:"text"`
}

type FinishCompile struct {
	Header
	Success bool `json:"success"`
}

type StartTest struct {
	Header
	Current int `json:"current"`
	Total   int `json:"total"`
}

type WorkerBusy struct {
	Header
	WorkerId   int `json:"worker_id"`
	TestNumber int `json:"test_number"`
}

type WorkerIdle struct {
	Header
	WorkerId int `json:"worker_id"`
}

type FinishTest struct {
	Header
	Test TestCase `json:"test"`
}

type FinishAllTests struct {
	Header
	OverallPassed bool `json:"overall_passed"`
}

func NewHeader(runUuid string, msgType MsgType) Header {
	return Header{
		RunUuid: runUuid,
		MsgType: msgType,
		SentAt:  time.Now().Format(time.RFC3339Nano),
	}
}

func NewCompileOutput(runUuid, text string) CompileOutput {
	return CompileOutput{Header: NewHeader(runUuid, CompileOutputMsg), Text: text}
}

func NewFinishCompile(runUuid string, success bool) FinishCompile {
	return FinishCompile{Header: NewHeader(runUuid, FinishCompileMsg), Success: success}
}

func NewStartTest(runUuid string, current, total int) StartTest {
	return StartTest{
		Header:  NewHeader(runUuid, StartTestMsg),
		Current: current,
		Total:   total,
	}
}

func NewWorkerBusy(runUuid string, workerId, testNumber int) WorkerBusy {
	return WorkerBusy{
		Header:     NewHeader(runUuid, WorkerBusyMsg),
		WorkerId:   workerId,
		TestNumber: testNumber,
	}
}

func NewWorkerIdle(runUuid string, workerId int) WorkerIdle {
	return WorkerIdle{Header: NewHeader(runUuid, WorkerIdleMsg), WorkerId: workerId}
}

func NewFinishTest(runUuid string, test TestCase) FinishTest {
	return FinishTest{Header: NewHeader(runUuid, FinishTestMsg), Test: test}
}

func NewFinishAllTests(runUuid string, overallPassed bool) FinishAllTests {
	return FinishAllTests{
		Header:        NewHeader(runUuid, FinishAllTestsMsg),
		OverallPassed: overallPassed,
	}
}
