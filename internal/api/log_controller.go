package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/integration-monitor/internal/service"
)

// LogController 日志控制器
type LogController struct {
	logService service.LogService
}

// NewLogController 创建日志控制器
func NewLogController(logService service.LogService) *LogController {
	return &LogController{
		logService: logService,
	}
}

// Create 写入日志
// @Summary      写入日志
// @Tags         日志
// @Accept       json
// @Produce      json
// @Param        request body service.CreateLogRequest true "日志内容"
// @Success      201  {object}  Response
// @Failure      400  {object}  Response
// @Router       /logs [post]
func (c *LogController) Create(ctx *gin.Context) {
	var req service.CreateLogRequest
	if !bindJSON(ctx, &req) {
		return
	}

	entry, err := c.logService.Create(ctx.Request.Context(), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Created(ctx, "Log created successfully", entry)
}

// ListByExecution 查询执行的日志
// @Summary      查询执行的日志
// @Tags         日志
// @Produce      json
// @Param        executionId path string true "执行 ID"
// @Param        page query int false "页码" default(1)
// @Param        limit query int false "每页数量" default(100)
// @Param        level query string false "级别"
// @Param        taskId query string false "任务 ID"
// @Param        search query string false "关键字"
// @Param        sortOrder query string false "排序方向" Enums(asc, desc) default(asc)
// @Success      200  {object}  Response
// @Router       /logs/execution/{executionId} [get]
func (c *LogController) ListByExecution(ctx *gin.Context) {
	executionID, ok := pathID(ctx, "executionId")
	if !ok {
		return
	}
	opts, ok := logQueryOptions(ctx, false)
	if !ok {
		return
	}
	opts.TaskID = ctx.Query("taskId")

	result, err := c.logService.ListByExecution(ctx.Request.Context(), executionID, opts)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Paginated(ctx, "Logs retrieved successfully", result.Data, result.Pagination)
}

// ListByTask 查询任务的日志
// @Summary      查询任务的日志
// @Tags         日志
// @Produce      json
// @Param        taskId path string true "任务 ID"
// @Param        page query int false "页码" default(1)
// @Param        limit query int false "每页数量" default(100)
// @Param        level query string false "级别"
// @Param        executionId query string false "执行 ID"
// @Param        search query string false "关键字"
// @Param        sortOrder query string false "排序方向" Enums(asc, desc) default(asc)
// @Success      200  {object}  Response
// @Router       /logs/task/{taskId} [get]
func (c *LogController) ListByTask(ctx *gin.Context) {
	taskID, ok := pathID(ctx, "taskId")
	if !ok {
		return
	}
	opts, ok := logQueryOptions(ctx, false)
	if !ok {
		return
	}
	opts.ExecutionID = ctx.Query("executionId")

	result, err := c.logService.ListByTask(ctx.Request.Context(), taskID, opts)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Paginated(ctx, "Logs retrieved successfully", result.Data, result.Pagination)
}

// ListByIntegration 查询集成的日志
// @Summary      查询集成的日志
// @Tags         日志
// @Produce      json
// @Param        integrationId path string true "集成 ID"
// @Param        page query int false "页码" default(1)
// @Param        limit query int false "每页数量" default(100)
// @Param        level query string false "级别"
// @Param        taskId query string false "任务 ID"
// @Param        executionId query string false "执行 ID"
// @Param        search query string false "关键字"
// @Param        startDate query string false "起始时间（RFC3339 或 YYYY-MM-DD）"
// @Param        endDate query string false "结束时间（RFC3339 或 YYYY-MM-DD）"
// @Param        sortOrder query string false "排序方向" Enums(asc, desc) default(desc)
// @Success      200  {object}  Response
// @Router       /logs/integration/{integrationId} [get]
func (c *LogController) ListByIntegration(ctx *gin.Context) {
	integrationID, ok := pathID(ctx, "integrationId")
	if !ok {
		return
	}
	opts, ok := logQueryOptions(ctx, true)
	if !ok {
		return
	}
	opts.TaskID = ctx.Query("taskId")
	opts.ExecutionID = ctx.Query("executionId")

	result, err := c.logService.ListByIntegration(ctx.Request.Context(), integrationID, opts)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Paginated(ctx, "Logs retrieved successfully", result.Data, result.Pagination)
}

// RecentErrors 最近的错误日志
// @Summary      最近的错误日志
// @Tags         日志
// @Produce      json
// @Param        integrationId path string true "集成 ID"
// @Param        limit query int false "数量" default(50)
// @Success      200  {object}  Response
// @Router       /logs/integration/{integrationId}/errors [get]
func (c *LogController) RecentErrors(ctx *gin.Context) {
	integrationID, ok := pathID(ctx, "integrationId")
	if !ok {
		return
	}

	logs, err := c.logService.RecentErrors(ctx.Request.Context(), integrationID, queryInt(ctx, "limit"))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, "Recent errors retrieved successfully", logs)
}

// LevelDistribution 日志级别分布
// @Summary      日志级别分布
// @Tags         日志
// @Produce      json
// @Param        integrationId path string true "集成 ID"
// @Success      200  {object}  Response
// @Router       /logs/integration/{integrationId}/distribution [get]
func (c *LogController) LevelDistribution(ctx *gin.Context) {
	integrationID, ok := pathID(ctx, "integrationId")
	if !ok {
		return
	}

	distribution, err := c.logService.LevelDistribution(ctx.Request.Context(), integrationID)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, "Log level distribution retrieved successfully", distribution)
}

// logQueryOptions 解析通用日志查询参数，日期参数仅在集成范围内解析
func logQueryOptions(ctx *gin.Context, withDates bool) (*service.LogQueryOptions, bool) {
	opts := &service.LogQueryOptions{
		Page:      queryInt(ctx, "page"),
		Limit:     queryInt(ctx, "limit"),
		Level:     ctx.Query("level"),
		Search:    ctx.Query("search"),
		SortOrder: ctx.Query("sortOrder"),
	}
	if !withDates {
		return opts, true
	}

	startDate, err := queryDate(ctx, "startDate")
	if err != nil {
		HandleError(ctx, err)
		return nil, false
	}
	endDate, err := queryDate(ctx, "endDate")
	if err != nil {
		HandleError(ctx, err)
		return nil, false
	}
	opts.StartDate = startDate
	opts.EndDate = endDate
	return opts, true
}
