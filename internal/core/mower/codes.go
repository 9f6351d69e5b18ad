package mower

// errorKeys maps the vendor's numeric error codes to stable snake_case keys.
// Taken from the Automower Connect API error list; codes 700+ are
// connectivity related.
var errorKeys = map[int]string{
	0:   "unexpected_error",
	1:   "outside_working_area",
	2:   "no_loop_signal",
	3:   "wrong_loop_signal",
	4:   "loop_sensor_problem_front",
	5:   "loop_sensor_problem_rear",
	6:   "loop_sensor_problem_left",
	7:   "loop_sensor_problem_right",
	8:   "wrong_pin_code",
	9:   "trapped",
	10:  "upside_down",
	11:  "low_battery",
	12:  "empty_battery",
	13:  "no_drive",
	14:  "mower_lifted",
	15:  "lifted",
	16:  "stuck_in_charging_station",
	17:  "charging_station_blocked",
	18:  "collision_sensor_problem_rear",
	19:  "collision_sensor_problem_front",
	20:  "wheel_motor_blocked_right",
	21:  "wheel_motor_blocked_left",
	22:  "wheel_drive_problem_right",
	23:  "wheel_drive_problem_left",
	24:  "cutting_system_blocked",
	25:  "cutting_system_blocked",
	26:  "invalid_sub_device_combination",
	27:  "settings_restored",
	28:  "memory_circuit_problem",
	29:  "slope_too_steep",
	30:  "charging_system_problem",
	31:  "stop_button_problem",
	32:  "tilt_sensor_problem",
	33:  "mower_tilted",
	34:  "cutting_stopped_slope_too_steep",
	35:  "wheel_motor_overloaded_right",
	36:  "wheel_motor_overloaded_left",
	37:  "charging_current_too_high",
	38:  "electronic_problem",
	39:  "cutting_motor_problem",
	40:  "limited_cutting_height_range",
	41:  "unexpected_cutting_height_adj",
	42:  "limited_cutting_height_range",
	43:  "cutting_height_problem_drive",
	44:  "cutting_height_problem_curr",
	45:  "cutting_height_problem_dir",
	46:  "cutting_height_blocked",
	47:  "cutting_height_problem",
	48:  "no_response_from_charger",
	49:  "ultrasonic_problem",
	50:  "guide_1_not_found",
	51:  "guide_2_not_found",
	52:  "guide_3_not_found",
	53:  "gps_navigation_problem",
	54:  "weak_gps_signal",
	55:  "difficult_finding_home",
	56:  "guide_calibration_accomplished",
	57:  "guide_calibration_failed",
	58:  "temporary_battery_problem",
	59:  "temporary_battery_problem",
	60:  "temporary_battery_problem",
	61:  "temporary_battery_problem",
	62:  "battery_restriction_due_to_ambient_temperature",
	63:  "temporary_battery_problem",
	64:  "temporary_battery_problem",
	65:  "temporary_battery_problem",
	66:  "battery_problem",
	67:  "battery_problem",
	68:  "temporary_battery_problem",
	69:  "alarm_mower_switched_off",
	70:  "alarm_mower_stopped",
	71:  "alarm_mower_lifted",
	72:  "alarm_mower_tilted",
	73:  "alarm_mower_in_motion",
	74:  "alarm_outside_geofence",
	75:  "connection_changed",
	76:  "connection_not_changed",
	77:  "com_board_not_available",
	78:  "slipped_mower_has_slipped_situation_not_solved_with_moving_pattern",
	79:  "invalid_battery_combination_invalid_combination_of_different_battery_types",
	80:  "cutting_system_imbalance_warning",
	81:  "safety_function_faulty",
	82:  "wheel_motor_blocked_rear_right",
	83:  "wheel_motor_blocked_rear_left",
	84:  "wheel_drive_problem_rear_right",
	85:  "wheel_drive_problem_rear_left",
	86:  "wheel_motor_overloaded_rear_right",
	87:  "wheel_motor_overloaded_rear_left",
	88:  "angular_sensor_problem",
	89:  "invalid_system_configuration",
	90:  "no_power_in_charging_station",
	91:  "switch_cord_problem",
	92:  "work_area_not_valid",
	93:  "no_accurate_position_from_satellites",
	94:  "reference_station_communication_problem",
	95:  "folding_sensor_activated",
	96:  "right_brush_motor_overloaded",
	97:  "left_brush_motor_overloaded",
	98:  "ultrasonic_sensor_1_defect",
	99:  "ultrasonic_sensor_2_defect",
	100: "ultrasonic_sensor_3_defect",
	101: "ultrasonic_sensor_4_defect",
	102: "cutting_drive_motor_1_defect",
	103: "cutting_drive_motor_2_defect",
	104: "cutting_drive_motor_3_defect",
	105: "lift_sensor_defect",
	106: "collision_sensor_defect",
	107: "docking_sensor_defect",
	108: "folding_cutting_deck_sensor_defect",
	109: "loop_sensor_defect",
	110: "collision_sensor_error",
	111: "no_confirmed_position",
	112: "cutting_system_major_imbalance",
	113: "complex_working_area",
	114: "too_high_discharge_current",
	115: "too_high_internal_current",
	116: "high_charging_power_loss",
	117: "high_internal_power_loss",
	118: "charging_system_problem",
	119: "zone_generator_problem",
	120: "internal_voltage_error",
	121: "high_internal_temperature",
	122: "can_error",
	123: "destination_not_reachable",
	701: "connectivity_problem",
	702: "connectivity_settings_restored",
	703: "connectivity_problem",
	704: "connectivity_problem",
	705: "connectivity_problem",
	706: "poor_signal_quality",
	707: "sim_card_requires_pin",
	708: "sim_card_locked",
	709: "sim_card_not_found",
	710: "sim_card_locked",
	711: "sim_card_locked",
	712: "sim_card_locked",
	713: "geofence_problem",
	714: "geofence_problem",
	715: "connectivity_problem",
	716: "connectivity_problem",
	717: "sms_could_not_be_sent",
	724: "communication_circuit_board_sw_must_be_updated",
}

// ErrorKey returns the stable key for a vendor error code. Code 0 means no
// error and returns the empty string, as does an unlisted code.
func ErrorKey(code int) string {
	if code == 0 {
		return ""
	}
	return errorKeys[code]
}
