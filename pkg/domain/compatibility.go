package domain

// RequiredRoomType maps an exam type to the room type it must be held in.
func RequiredRoomType(t ExamType) RoomType {
	switch t {
	case ExamPractical:
		return RoomLaboratory
	case ExamOral:
		return RoomMeetingRoom
	case ExamComputer:
		return RoomComputerLab
	default:
		return RoomClassroom
	}
}

// RoomTypeCompatible reports whether a room of the actual type can host an
// exam requiring want. Amphitheaters and computer labs substitute for plain
// classrooms; every other requirement is exact.
func RoomTypeCompatible(want, actual RoomType) bool {
	if want == actual {
		return true
	}
	if want == RoomClassroom {
		return actual == RoomAmphitheater || actual == RoomComputerLab
	}
	return false
}

// RequiredEquipmentTypes lists the equipment types a room must carry for the
// exam type. Written exams have no in-room equipment requirement.
func RequiredEquipmentTypes(t ExamType) []string {
	switch t {
	case ExamComputer:
		return []string{"computers", "projector"}
	case ExamPractical:
		return []string{"laboratory_equipment"}
	case ExamOral:
		return []string{"microphone", "recording_equipment"}
	default:
		return nil
	}
}
