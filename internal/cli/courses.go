package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fitpro/fitsync/internal/catalog"
	"github.com/fitpro/fitsync/internal/domain"
	"github.com/fitpro/fitsync/internal/progress"
)

// NewCoursesCommand creates the courses command.
func NewCoursesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "courses [query]",
		Short: "List or search the course catalog",
		Long: `List the course catalog. With a query, fuzzy-match course names and
list the best matches first. Enrolled courses are marked with *.

Example:
  fitsync courses yoga`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return rootOpts.runWithApp(cmd, false, func(ctx context.Context, app *App, out *OutputFormatter) error {
				// enrollment marks need a user, the listing does not
				if app.Config.User.ID != "" {
					if err := app.SignIn(ctx); err != nil {
						app.Logger.Warn("sign-in failed, listing without enrollment", "error", err)
					}
				}
				return out.Success(NewCourseList(app.Catalog, app.Store.Current(), query, app.CatalogStale))
			})
		},
	}
}

// NewEnrollCommand creates the enroll command.
func NewEnrollCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "enroll <course-id>",
		Short:         "Enroll in a course",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID := args[0]
			return rootOpts.runWithApp(cmd, true, func(ctx context.Context, app *App, out *OutputFormatter) error {
				if err := app.Engine.Enroll(ctx, courseID); err != nil {
					return out.Fail("enroll failed", err)
				}
				course, _ := app.Catalog.Course(courseID)
				return out.Success(Message{Message: fmt.Sprintf("Enrolled in %s (%s)", course.Name, courseID)})
			})
		},
	}
}

// NewUnenrollCommand creates the unenroll command.
func NewUnenrollCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unenroll <course-id>",
		Short: "Leave a course and delete its progress",
		Long: `Leave a course. The course and all of its recorded progress are removed
together.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID := args[0]
			return rootOpts.runWithApp(cmd, true, func(ctx context.Context, app *App, out *OutputFormatter) error {
				if err := app.Engine.Unenroll(ctx, courseID); err != nil {
					return out.Fail("unenroll failed", err)
				}
				return out.Success(Message{Message: fmt.Sprintf("Left %s", courseID)})
			})
		},
	}
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "record <course-id> <workout-id> <exercise-id> <reps>",
		Short: "Record completed reps for an exercise",
		Long: `Record completed repetitions for one exercise. The value replaces the
previous one and is clamped to the exercise target. Put -- before a
negative value so it is not read as a flag.

Example:
  fitsync record yoga w3 w3-ex0 12
  fitsync record -- yoga w3 w3-ex0 -1`,
		Args:          cobra.ExactArgs(4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID, workoutID, exerciseID := args[0], args[1], args[2]
			reps, err := strconv.Atoi(args[3])
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("invalid reps %q", args[3]), err)
			}
			return rootOpts.runWithApp(cmd, true, func(ctx context.Context, app *App, out *OutputFormatter) error {
				stored, err := app.Engine.RecordProgress(ctx, courseID, workoutID, exerciseID, reps)
				if err != nil {
					return out.Fail("record failed", err)
				}
				return out.Success(recordResult(app.Catalog, app.Store.Current().Progress[courseID], courseID, workoutID, exerciseID, reps, stored))
			})
		},
	}
}

func recordResult(cat *catalog.Catalog, done domain.CourseProgress, courseID, workoutID, exerciseID string, requested, stored int) RecordResult {
	r := RecordResult{
		CourseID:   courseID,
		WorkoutID:  workoutID,
		ExerciseID: exerciseID,
		Requested:  requested,
		Reps:       stored,
	}
	workout, _ := cat.Workout(workoutID)
	if ex, ok := workout.Exercise(exerciseID); ok {
		r.Target = ex.TargetReps
	}
	r.WorkoutPercent = progress.WorkoutPercent(workout, done[workoutID])
	if course, ok := cat.Course(courseID); ok {
		r.CoursePercent = progress.CoursePercent(course, cat, done)
	}
	return r
}
