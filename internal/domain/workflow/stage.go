package workflow

// Stage is one phase of the production pipeline
type Stage string

const (
	StageDraw   Stage = "DRAW"
	StageCheck  Stage = "CHECK"
	StageDesign Stage = "DESIGN"
	StageQA     Stage = "QA"
)

// String returns the string representation of the stage
func (s Stage) String() string {
	return string(s)
}

// Role is a user role. Production roles map 1:1 to a stage.
type Role string

const (
	RoleDrawer            Role = "drawer"
	RoleChecker           Role = "checker"
	RoleDesigner          Role = "designer"
	RoleQA                Role = "qa"
	RoleOperationsManager Role = "operations_manager"
	RoleDirector          Role = "director"
	RoleCEO               Role = "ceo"
)

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

var stageRoles = map[Stage]Role{
	StageDraw:   RoleDrawer,
	StageCheck:  RoleChecker,
	StageDesign: RoleDesigner,
	StageQA:     RoleQA,
}

var roleStages = map[Role]Stage{
	RoleDrawer:   StageDraw,
	RoleChecker:  StageCheck,
	RoleDesigner: StageDesign,
	RoleQA:       StageQA,
}

var stateStages = map[State]Stage{
	StateQueuedDraw:      StageDraw,
	StateInDraw:          StageDraw,
	StateSubmittedDraw:   StageDraw,
	StateQueuedCheck:     StageCheck,
	StateInCheck:         StageCheck,
	StateSubmittedCheck:  StageCheck,
	StateQueuedDesign:    StageDesign,
	StateInDesign:        StageDesign,
	StateSubmittedDesign: StageDesign,
	StateQueuedQA:        StageQA,
	StateInQA:            StageQA,
}

var holdRoles = map[Role]bool{
	RoleChecker:           true,
	RoleQA:                true,
	RoleOperationsManager: true,
	RoleDirector:          true,
	RoleCEO:               true,
}

var managerRoles = map[Role]bool{
	RoleOperationsManager: true,
	RoleDirector:          true,
	RoleCEO:               true,
}

var orgWideRoles = map[Role]bool{
	RoleDirector: true,
	RoleCEO:      true,
}

// Role returns the worker role that performs the stage
func (s Stage) Role() Role {
	return stageRoles[s]
}

// StageOf returns the stage a queued, in-progress or submitted state belongs to
func StageOf(state State) (Stage, bool) {
	stage, ok := stateStages[state]
	return stage, ok
}

// Stage returns the stage of a production role
func (r Role) Stage() (Stage, bool) {
	stage, ok := roleStages[r]
	return stage, ok
}

// IsProduction reports whether the role pulls work from a queue
func (r Role) IsProduction() bool {
	_, ok := roleStages[r]
	return ok
}

// IsManager reports whether the role has management privileges
func (r Role) IsManager() bool {
	return managerRoles[r]
}

// IsOrgWide reports whether the role reaches every project
func (r Role) IsOrgWide() bool {
	return orgWideRoles[r]
}

// CanHold reports whether the role may put orders on hold
func (r Role) CanHold() bool {
	return holdRoles[r]
}

// StagesFor returns the pipeline stages of a workflow type in order
func StagesFor(workflowType WorkflowType) []Stage {
	if workflowType == WorkflowPH2Layer {
		return []Stage{StageDesign, StageQA}
	}
	return []Stage{StageDraw, StageCheck, StageQA}
}

// HasStage reports whether the workflow type runs the stage
func HasStage(workflowType WorkflowType, stage Stage) bool {
	for _, s := range StagesFor(workflowType) {
		if s == stage {
			return true
		}
	}
	return false
}
