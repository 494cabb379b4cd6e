package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AnalysisResult is written by the AI service once it has compared a video against a
// reference. This service only reads it.
type AnalysisResult struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VideoID         primitive.ObjectID `bson:"video_id" json:"video_id"`
	Success         bool               `bson:"success" json:"success"`
	AnalysisSummary AnalysisSummary    `bson:"analysis_summary" json:"analysis_summary"`
	GlobalFeedback  string             `bson:"global_feedback" json:"global_feedback"`
	FrameAnalysis   []bson.M           `bson:"frame_analysis" json:"frame_analysis"`
	Metadata        AnalysisMetadata   `bson:"metadata" json:"metadata"`
	CreatedAt       time.Time          `bson:"created_at,omitempty" json:"created_at,omitempty"`
}

type AnalysisSummary struct {
	Summary           SummaryStats `bson:"summary" json:"summary"`
	PerformanceRating string       `bson:"performance_rating" json:"performance_rating"`
	Recommendations   []string     `bson:"recommendations" json:"recommendations"`
}

type SummaryStats struct {
	TotalFramesAnalyzed        int            `bson:"total_frames_analyzed" json:"total_frames_analyzed"`
	AverageTechnicalScore      float64        `bson:"average_technical_score" json:"average_technical_score"`
	AveragePoseQuality         PoseQuality    `bson:"average_pose_quality" json:"average_pose_quality"`
	TotalImprovementsSuggested int            `bson:"total_improvements_suggested" json:"total_improvements_suggested"`
	ImprovementBreakdown       map[string]int `bson:"improvement_breakdown" json:"improvement_breakdown"`
}

type PoseQuality struct {
	Balance   float64 `bson:"balance" json:"balance"`
	Symmetry  float64 `bson:"symmetry" json:"symmetry"`
	Stability float64 `bson:"stability" json:"stability"`
}

type AnalysisMetadata struct {
	TotalFrames       int      `bson:"total_frames" json:"total_frames"`
	PhasesDetected    []string `bson:"phases_detected" json:"phases_detected"`
	AnalysisTimestamp string   `bson:"analysis_timestamp" json:"analysis_timestamp"`
}
