package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/integration-monitor/internal/service"
)

// ExecutionController 执行控制器
type ExecutionController struct {
	executionService service.ExecutionService
}

// NewExecutionController 创建执行控制器
func NewExecutionController(executionService service.ExecutionService) *ExecutionController {
	return &ExecutionController{
		executionService: executionService,
	}
}

// Start 启动执行
// @Summary      启动执行
// @Description  为集成创建一条 running 状态的执行记录，请求体可省略
// @Tags         执行管理
// @Accept       json
// @Produce      json
// @Param        integrationId path string true "集成 ID"
// @Param        request body service.StartExecutionRequest false "执行参数"
// @Success      201  {object}  Response
// @Failure      404  {object}  Response
// @Router       /executions/integration/{integrationId} [post]
func (c *ExecutionController) Start(ctx *gin.Context) {
	integrationID, ok := pathID(ctx, "integrationId")
	if !ok {
		return
	}

	var req service.StartExecutionRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			Error(ctx, http.StatusBadRequest, "Validation error", bindingErrors(err)...)
			return
		}
	}

	execution, err := c.executionService.Start(ctx.Request.Context(), integrationID, req.ExecutionType, req.TriggeredBy)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Created(ctx, "Execution started successfully", execution)
}

// ListByIntegration 查询集成的执行记录
// @Summary      查询集成的执行记录
// @Tags         执行管理
// @Produce      json
// @Param        integrationId path string true "集成 ID"
// @Param        page query int false "页码" default(1)
// @Param        limit query int false "每页数量" default(10)
// @Success      200  {object}  Response
// @Router       /executions/integration/{integrationId} [get]
func (c *ExecutionController) ListByIntegration(ctx *gin.Context) {
	integrationID, ok := pathID(ctx, "integrationId")
	if !ok {
		return
	}

	result, err := c.executionService.ListByIntegration(
		ctx.Request.Context(), integrationID, queryInt(ctx, "page"), queryInt(ctx, "limit"),
	)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Paginated(ctx, "Executions retrieved successfully", result.Data, result.Pagination)
}

// Recent 最近的执行记录
// @Summary      最近的执行记录
// @Tags         执行管理
// @Produce      json
// @Param        limit query int false "数量" default(20)
// @Success      200  {object}  Response
// @Router       /executions/recent/all [get]
func (c *ExecutionController) Recent(ctx *gin.Context) {
	executions, err := c.executionService.Recent(ctx.Request.Context(), queryInt(ctx, "limit"))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, "Recent executions retrieved successfully", executions)
}

// Get 获取执行记录
// @Summary      获取执行详情
// @Tags         执行管理
// @Produce      json
// @Param        executionId path string true "执行 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  Response
// @Router       /executions/{executionId} [get]
func (c *ExecutionController) Get(ctx *gin.Context) {
	executionID, ok := pathID(ctx, "executionId")
	if !ok {
		return
	}

	execution, err := c.executionService.Get(ctx.Request.Context(), executionID)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, "Execution retrieved successfully", execution)
}

// Complete 完成执行
// @Summary      完成执行
// @Description  记录执行结果并更新集成的最近执行信息与状态
// @Tags         执行管理
// @Accept       json
// @Produce      json
// @Param        executionId path string true "执行 ID"
// @Param        request body service.CompleteExecutionRequest true "执行结果"
// @Success      200  {object}  Response
// @Failure      400  {object}  Response
// @Failure      404  {object}  Response
// @Router       /executions/{executionId}/complete [put]
func (c *ExecutionController) Complete(ctx *gin.Context) {
	executionID, ok := pathID(ctx, "executionId")
	if !ok {
		return
	}

	var req service.CompleteExecutionRequest
	if !bindJSON(ctx, &req) {
		return
	}

	execution, err := c.executionService.Complete(ctx.Request.Context(), executionID, req.Status, req.ResultData)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, "Execution completed successfully", execution)
}

// Cancel 取消执行
// @Summary      取消执行
// @Description  只能取消 pending 或 running 状态的执行
// @Tags         执行管理
// @Produce      json
// @Param        executionId path string true "执行 ID"
// @Success      200  {object}  Response
// @Failure      400  {object}  Response
// @Failure      404  {object}  Response
// @Router       /executions/{executionId}/cancel [put]
func (c *ExecutionController) Cancel(ctx *gin.Context) {
	executionID, ok := pathID(ctx, "executionId")
	if !ok {
		return
	}

	execution, err := c.executionService.Cancel(ctx.Request.Context(), executionID)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, "Execution cancelled successfully", execution)
}

// RecordTaskOutcome 上报任务结果到执行汇总
// @Summary      更新执行汇总
// @Tags         执行管理
// @Accept       json
// @Produce      json
// @Param        executionId path string true "执行 ID"
// @Param        request body service.TaskOutcomeRequest true "任务状态"
// @Success      200  {object}  Response
// @Failure      404  {object}  Response
// @Router       /executions/{executionId}/summary [put]
func (c *ExecutionController) RecordTaskOutcome(ctx *gin.Context) {
	executionID, ok := pathID(ctx, "executionId")
	if !ok {
		return
	}

	var req service.TaskOutcomeRequest
	if !bindJSON(ctx, &req) {
		return
	}

	execution, err := c.executionService.RecordTaskOutcome(ctx.Request.Context(), executionID, req.TaskStatus)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, "Execution summary updated successfully", execution)
}

// Reconcile 重新应用执行对集成的更新
// @Summary      重新同步集成状态
// @Tags         执行管理
// @Produce      json
// @Param        executionId path string true "执行 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  Response
// @Router       /executions/{executionId}/reconcile [put]
func (c *ExecutionController) Reconcile(ctx *gin.Context) {
	executionID, ok := pathID(ctx, "executionId")
	if !ok {
		return
	}

	integration, err := c.executionService.Reconcile(ctx.Request.Context(), executionID)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	// 集成已被删除时 data 为空
	Success(ctx, "Execution reconciled successfully", integration)
}
