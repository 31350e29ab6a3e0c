package mock

import (
	"time"

	"myday/backend"
)

type seedStep struct {
	id    string
	title string
	done  bool
}

type seedTask struct {
	id          string
	title       string
	description string
	dueInDays   int // 0 means no deadline
	status      backend.TaskStatus
	priority    backend.Priority
	steps       []seedStep
}

type seedList struct {
	id          string
	title       string
	description string
	category    backend.Category
	color       string
	tasks       []seedTask
}

var seedLists = []seedList{
	{
		id: "list1", title: "Web Development Project",
		description: "Frontend redesign and new features implementation",
		category:    backend.CategoryWork, color: "#3B82F6",
		tasks: []seedTask{
			{
				id: "l1-t1", title: "Create responsive navigation",
				description: "Design and implement mobile-first navigation",
				dueInDays:   3, status: backend.StatusInProgress, priority: backend.PriorityHigh,
				steps: []seedStep{
					{"l1-t1-s1", "Design mockup", true},
					{"l1-t1-s2", "Code HTML structure", true},
					{"l1-t1-s3", "Add CSS styling", false},
					{"l1-t1-s4", "Add JavaScript interactions", false},
				},
			},
			{
				id: "l1-t2", title: "Implement user authentication",
				description: "Add login and registration functionality",
				dueInDays:   7, status: backend.StatusTodo, priority: backend.PriorityHigh,
			},
			{
				id: "l1-t3", title: "Set up database schema",
				description: "Design tables for users, lists and tasks",
				status:      backend.StatusCompleted, priority: backend.PriorityMedium,
			},
		},
	},
	{
		id: "list2", title: "Marketing Campaign",
		description: "Q3 product launch campaign",
		category:    backend.CategoryWork, color: "#10B981",
		tasks: []seedTask{
			{
				id: "l2-t1", title: "Create social media content",
				dueInDays: 5, status: backend.StatusTodo, priority: backend.PriorityMedium,
				steps: []seedStep{
					{"l2-t1-s1", "Brainstorm content ideas", true},
					{"l2-t1-s2", "Create graphics", false},
					{"l2-t1-s3", "Write captions", false},
				},
			},
			{
				id: "l2-t2", title: "Plan email campaign",
				dueInDays: 10, status: backend.StatusInProgress, priority: backend.PriorityMedium,
			},
		},
	},
	{
		id: "list3", title: "Learning Goals",
		description: "Courses and reading for this quarter",
		category:    backend.CategoryPersonal, color: "#8B5CF6",
		tasks: []seedTask{
			{
				id: "l3-t1", title: "Complete React course",
				dueInDays: 30, status: backend.StatusInProgress, priority: backend.PriorityLow,
				steps: []seedStep{
					{"l3-t1-s1", "Watch video lectures", true},
					{"l3-t1-s2", "Complete exercises", false},
					{"l3-t1-s3", "Build final project", false},
				},
			},
		},
	},
}

var seedUnlisted = []seedTask{
	{
		id: "u-t1", title: "Review project proposal",
		description: "Review and provide feedback on the new project proposal",
		dueInDays:   1, status: backend.StatusTodo, priority: backend.PriorityHigh,
		steps: []seedStep{
			{"u-t1-s1", "Read document", true},
			{"u-t1-s2", "Analyze requirements", false},
			{"u-t1-s3", "Provide feedback", false},
		},
	},
	{
		id: "u-t2", title: "Finish UI components",
		description: "Complete the remaining UI components for the dashboard",
		dueInDays:   2, status: backend.StatusInProgress, priority: backend.PriorityMedium,
	},
}

// seed fills s with the demo user, lists and tasks. Creation times are
// spaced one minute apart in declaration order so sorting is deterministic.
func seed(s *Store) {
	now := s.now()
	created := now.Add(-24 * time.Hour)
	tick := func() time.Time {
		created = created.Add(time.Minute)
		return created
	}

	s.users[DemoUsername] = backend.User{
		Username: DemoUsername,
		Email:    "mock@example.com",
		FullName: "Mock User",
	}

	for _, sl := range seedLists {
		at := tick()
		s.lists = append(s.lists, backend.List{
			ID:          sl.id,
			Title:       sl.title,
			Description: sl.description,
			Category:    sl.category,
			Color:       sl.color,
			Username:    DemoUsername,
			CreatedAt:   at,
			UpdatedAt:   at,
		})
		for _, st := range sl.tasks {
			s.tasks = append(s.tasks, seedToTask(st, sl.id, "", tick(), now))
		}
	}
	for _, st := range seedUnlisted {
		s.tasks = append(s.tasks, seedToTask(st, "", DemoUsername, tick(), now))
	}
}

func seedToTask(st seedTask, listID, username string, created, now time.Time) backend.Task {
	t := backend.Task{
		ID:          st.id,
		Title:       st.title,
		Description: st.description,
		Status:      st.status,
		Priority:    st.priority,
		ListID:      listID,
		Username:    username,
		Steps:       []backend.Step{},
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	if st.dueInDays > 0 {
		due := now.AddDate(0, 0, st.dueInDays)
		t.Deadline = &due
	}
	for _, ss := range st.steps {
		t.Steps = append(t.Steps, backend.Step{
			ID:        ss.id,
			TaskID:    st.id,
			Title:     ss.title,
			Completed: ss.done,
			CreatedAt: created,
		})
	}
	return t
}
