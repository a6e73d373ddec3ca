package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/integration-monitor/internal/service"
)

// TaskController 任务控制器
type TaskController struct {
	taskService service.TaskService
}

// NewTaskController 创建任务控制器
func NewTaskController(taskService service.TaskService) *TaskController {
	return &TaskController{
		taskService: taskService,
	}
}

// Create 创建任务
// @Summary      创建任务
// @Description  未指定 order 时追加到集成任务列表末尾
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        request body service.CreateTaskRequest true "任务信息"
// @Success      201  {object}  Response
// @Failure      400  {object}  Response
// @Failure      404  {object}  Response
// @Router       /tasks [post]
func (c *TaskController) Create(ctx *gin.Context) {
	var req service.CreateTaskRequest
	if !bindJSON(ctx, &req) {
		return
	}

	task, err := c.taskService.Create(ctx.Request.Context(), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Created(ctx, "Task created successfully", task)
}

// ListByIntegration 查询集成的任务
// @Summary      查询集成的任务
// @Tags         任务管理
// @Produce      json
// @Param        integrationId path string true "集成 ID"
// @Success      200  {object}  Response
// @Router       /tasks/integration/{integrationId} [get]
func (c *TaskController) ListByIntegration(ctx *gin.Context) {
	integrationID, ok := pathID(ctx, "integrationId")
	if !ok {
		return
	}

	tasks, err := c.taskService.ListByIntegration(ctx.Request.Context(), integrationID)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, "Tasks retrieved successfully", tasks)
}

// Get 获取任务
// @Summary      获取任务详情
// @Tags         任务管理
// @Produce      json
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  Response
// @Router       /tasks/{id} [get]
func (c *TaskController) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	task, err := c.taskService.Get(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, "Task retrieved successfully", task)
}

// Update 更新任务
// @Summary      更新任务
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Param        request body service.UpdateTaskRequest true "更新内容"
// @Success      200  {object}  Response
// @Failure      400  {object}  Response
// @Failure      404  {object}  Response
// @Router       /tasks/{id} [put]
func (c *TaskController) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req service.UpdateTaskRequest
	if !bindJSON(ctx, &req) {
		return
	}

	task, err := c.taskService.Update(ctx.Request.Context(), id, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, "Task updated successfully", task)
}

// Delete 删除任务
// @Summary      删除任务
// @Description  删除后同一集成中排在其后的任务顺序依次前移
// @Tags         任务管理
// @Produce      json
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  Response
// @Router       /tasks/{id} [delete]
func (c *TaskController) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if err := c.taskService.Delete(ctx.Request.Context(), id); err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, "Task deleted successfully", gin.H{"id": id})
}

// Reorder 批量调整任务顺序
// @Summary      调整任务顺序
// @Description  不存在的任务 ID 会被忽略
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        request body service.ReorderTasksRequest true "新顺序"
// @Success      200  {object}  Response
// @Failure      400  {object}  Response
// @Router       /tasks/order/update [put]
func (c *TaskController) Reorder(ctx *gin.Context) {
	var req service.ReorderTasksRequest
	if !bindJSON(ctx, &req) {
		return
	}

	tasks, err := c.taskService.Reorder(ctx.Request.Context(), req.Tasks)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, "Tasks order updated successfully", tasks)
}

// SetStatus 设置任务状态
// @Summary      设置任务状态
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Param        request body SetStatusRequest true "状态"
// @Success      200  {object}  Response
// @Failure      400  {object}  Response
// @Failure      404  {object}  Response
// @Router       /tasks/{id}/status [patch]
func (c *TaskController) SetStatus(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req SetStatusRequest
	if !bindJSON(ctx, &req) {
		return
	}

	task, err := c.taskService.SetStatus(ctx.Request.Context(), id, req.Status)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, "Task status updated successfully", task)
}
